package browser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/GriffinCanCode/navigator/internal/forms"
	"github.com/GriffinCanCode/navigator/internal/pipeline"
)

// LinkQuery selects a link. Every set field must match; Nr picks among
// the matches, counting from zero.
type LinkQuery struct {
	Text      string
	TextRegex *regexp.Regexp
	URL       string
	URLRegex  *regexp.Regexp
	Name      string
	ID        string
	Tag       string
	Predicate func(*forms.Link) bool
	Nr        int
}

func (q LinkQuery) match(l *forms.Link) bool {
	switch {
	case q.Text != "" && l.Text != q.Text:
		return false
	case q.TextRegex != nil && !q.TextRegex.MatchString(l.Text):
		return false
	case q.URL != "" && l.URL != q.URL:
		return false
	case q.URLRegex != nil && !q.URLRegex.MatchString(l.URL):
		return false
	case q.Name != "" && l.Attr("name") != q.Name:
		return false
	case q.ID != "" && l.Attr("id") != q.ID:
		return false
	case q.Tag != "" && !strings.EqualFold(l.Tag, q.Tag):
		return false
	case q.Predicate != nil && !q.Predicate(l):
		return false
	}
	return true
}

func (q LinkQuery) String() string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, fmt.Sprintf("%s=%q", k, v))
		}
	}
	add("text", q.Text)
	if q.TextRegex != nil {
		add("text_regex", q.TextRegex.String())
	}
	add("url", q.URL)
	if q.URLRegex != nil {
		add("url_regex", q.URLRegex.String())
	}
	add("name", q.Name)
	add("id", q.ID)
	add("tag", q.Tag)
	parts = append(parts, fmt.Sprintf("nr=%d", q.Nr))
	return strings.Join(parts, " ")
}

// FormQuery selects a form the same way LinkQuery selects a link.
// Action is compared with the resolved action URL.
type FormQuery struct {
	Name      string
	ID        string
	Action    string
	Predicate func(*forms.Form) bool
	Nr        int
}

func (q FormQuery) match(f *forms.Form) bool {
	switch {
	case q.Name != "" && f.Name != q.Name:
		return false
	case q.ID != "" && f.ID != q.ID:
		return false
	case q.Action != "" && (f.Action == nil || f.Action.String() != q.Action):
		return false
	case q.Predicate != nil && !q.Predicate(f):
		return false
	}
	return true
}

func (q FormQuery) String() string {
	var parts []string
	if q.Name != "" {
		parts = append(parts, fmt.Sprintf("name=%q", q.Name))
	}
	if q.ID != "" {
		parts = append(parts, fmt.Sprintf("id=%q", q.ID))
	}
	if q.Action != "" {
		parts = append(parts, fmt.Sprintf("action=%q", q.Action))
	}
	parts = append(parts, fmt.Sprintf("nr=%d", q.Nr))
	return strings.Join(parts, " ")
}

// Page returns the parsed current document. It is parsed once per
// navigation.
func (b *Browser) Page() (*forms.Page, error) {
	return b.htmlPage("page")
}

func (b *Browser) htmlPage(op string) (*forms.Page, error) {
	if b.closed {
		return nil, stateError(op, ErrClosed)
	}
	if b.response == nil {
		return nil, stateError(op, ErrNoDocument)
	}
	if !isHTML(b.response) {
		return nil, stateError(op, ErrNotHTML)
	}
	if b.page == nil && b.pageErr == nil {
		b.page, b.pageErr = b.parser.Parse(b.response)
	}
	return b.page, b.pageErr
}

// Title returns the document title.
func (b *Browser) Title() (string, error) {
	page, err := b.htmlPage("title")
	if err != nil {
		return "", err
	}
	return page.Title, nil
}

// Links returns every link in the current document.
func (b *Browser) Links() ([]*forms.Link, error) {
	page, err := b.htmlPage("links")
	if err != nil {
		return nil, err
	}
	return page.Links, nil
}

// Forms returns every form in the current document.
func (b *Browser) Forms() ([]*forms.Form, error) {
	page, err := b.htmlPage("forms")
	if err != nil {
		return nil, err
	}
	return page.Forms, nil
}

// FindLink returns the link matching q.
func (b *Browser) FindLink(q LinkQuery) (*forms.Link, error) {
	links, err := b.Links()
	if err != nil {
		return nil, err
	}
	nr := q.Nr
	for _, l := range links {
		if !q.match(l) {
			continue
		}
		if nr == 0 {
			return l, nil
		}
		nr--
	}
	return nil, &NotFoundError{Query: q.String(), Err: ErrLinkNotFound}
}

// ClickLink builds the request following the link matching q would send.
func (b *Browser) ClickLink(q LinkQuery) (*pipeline.Request, error) {
	link, err := b.FindLink(q)
	if err != nil {
		return nil, err
	}
	u, err := link.Absolute()
	if err != nil {
		return nil, err
	}
	req := pipeline.NewRequestURL("", u, nil)
	b.stampReferrer(req)
	return req, nil
}

// FollowLink navigates to the link matching q.
func (b *Browser) FollowLink(ctx context.Context, q LinkQuery) (*pipeline.Response, error) {
	req, err := b.ClickLink(q)
	if err != nil {
		return nil, err
	}
	return b.navigate(ctx, "follow_link", req, true)
}

// SelectForm makes the form matching q the target of Form, Click and
// Submit.
func (b *Browser) SelectForm(q FormQuery) error {
	all, err := b.Forms()
	if err != nil {
		return err
	}
	nr := q.Nr
	for _, f := range all {
		if !q.match(f) {
			continue
		}
		if nr == 0 {
			b.form = f
			return nil
		}
		nr--
	}
	return &NotFoundError{Query: q.String(), Err: ErrFormNotFound}
}

// Form returns the selected form.
func (b *Browser) Form() (*forms.Form, error) {
	if b.closed {
		return nil, stateError("form", ErrClosed)
	}
	if b.form == nil {
		return nil, stateError("form", ErrNoFormSelected)
	}
	return b.form, nil
}

// Click builds the request submitting the selected form through the named
// submit control would send. An empty name uses the first one.
func (b *Browser) Click(submit string) (*pipeline.Request, error) {
	form, err := b.Form()
	if err != nil {
		return nil, err
	}
	req, err := form.Click(submit)
	if err != nil {
		return nil, err
	}
	b.stampReferrer(req)
	return req, nil
}

// Submit sends the selected form.
func (b *Browser) Submit(ctx context.Context, submit string) (*pipeline.Response, error) {
	req, err := b.Click(submit)
	if err != nil {
		return nil, err
	}
	return b.navigate(ctx, "submit", req, true)
}

// stampReferrer marks req as a referer-bearing navigation from the current
// document; the pipeline's referer policy decides whether to send it.
func (b *Browser) stampReferrer(req *pipeline.Request) {
	if u := b.currentURL(); u != nil {
		req.Referrer = u.String()
	}
}
