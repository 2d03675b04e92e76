package forms

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/GriffinCanCode/navigator/internal/pipeline"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// MaxDocumentSize limits how much of a body is parsed.
const MaxDocumentSize = 10 * 1024 * 1024

// Parser builds the derived views of a response.
type Parser interface {
	Parse(resp *pipeline.Response) (*Page, error)
}

// HTMLParser is the goquery-backed Parser.
type HTMLParser struct {
	MaxSize int64
	text    *bluemonday.Policy
}

// NewParser returns an HTMLParser with the default size limit.
func NewParser() *HTMLParser {
	return &HTMLParser{MaxSize: MaxDocumentSize, text: bluemonday.StrictPolicy()}
}

// Page is the parsed view of one HTML document.
type Page struct {
	// Base is the URL relative references resolve against, honouring <base>.
	Base     *url.URL
	Title    string
	Encoding string
	Links    []*Link
	Forms    []*Form

	doc  *goquery.Document
	text *bluemonday.Policy
}

// Link is a followable reference: a, area, frame or iframe.
type Link struct {
	Base *url.URL
	// URL is the raw attribute value as written in the document.
	URL   string
	Text  string
	Tag   string
	Attrs map[string]string
}

// Absolute resolves the link against its base.
func (l *Link) Absolute() (*url.URL, error) {
	u, err := l.Base.Parse(strings.TrimSpace(l.URL))
	if err != nil {
		return nil, fmt.Errorf("resolve link %q: %w", l.URL, err)
	}
	return u, nil
}

// Attr returns an attribute value or "".
func (l *Link) Attr(name string) string {
	return l.Attrs[strings.ToLower(name)]
}

// Parse reads the whole body through an alias, so resp's own cursor is
// left where it was.
func (p *HTMLParser) Parse(resp *pipeline.Response) (*Page, error) {
	limit := p.MaxSize
	if limit <= 0 {
		limit = MaxDocumentSize
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body.Clone(), limit))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	enc := resp.Charset()
	if enc == "" {
		enc = DetectCharset(data)
	}
	doc, err := loadDocument(data, enc)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	base := resp.FinalURL()
	if base == nil {
		base = &url.URL{}
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = u
		}
	}

	policy := p.text
	if policy == nil {
		policy = bluemonday.StrictPolicy()
	}
	page := &Page{
		Base:     base,
		Title:    NormalizeWhitespace(doc.Find("title").First().Text()),
		Encoding: enc,
		doc:      doc,
		text:     policy,
	}
	page.Links = extractLinks(doc, base)
	doc.Find("form").Each(func(i int, s *goquery.Selection) {
		page.Forms = append(page.Forms, parseForm(s, base))
	})
	return page, nil
}

// Text returns the visible text of the body with markup stripped.
func (p *Page) Text() string {
	body, err := p.doc.Find("body").Html()
	if err != nil {
		return ""
	}
	return NormalizeWhitespace(p.text.Sanitize(body))
}

// Document exposes the parsed tree for ad-hoc queries.
func (p *Page) Document() *goquery.Document {
	return p.doc
}

func extractLinks(doc *goquery.Document, base *url.URL) []*Link {
	var links []*Link
	doc.Find("a[href], area[href], frame[src], iframe[src]").Each(func(i int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		attr := "href"
		if tag == "frame" || tag == "iframe" {
			attr = "src"
		}
		raw, _ := s.Attr(attr)

		text := ""
		switch tag {
		case "a":
			text = NormalizeWhitespace(s.Text())
		case "area":
			text = s.AttrOr("alt", "")
		}
		links = append(links, &Link{
			Base:  base,
			URL:   raw,
			Text:  text,
			Tag:   tag,
			Attrs: attrs(s),
		})
	})
	return links
}

func attrs(s *goquery.Selection) map[string]string {
	out := make(map[string]string)
	if len(s.Nodes) == 0 {
		return out
	}
	for _, a := range s.Nodes[0].Attr {
		out[strings.ToLower(a.Key)] = a.Val
	}
	return out
}

// loadDocument decodes data from enc to UTF-8 and parses it.
func loadDocument(data []byte, enc string) (*goquery.Document, error) {
	reader, err := charset.NewReaderLabel(enc, bytes.NewReader(data))
	if err != nil {
		return goquery.NewDocumentFromReader(bytes.NewReader(data))
	}
	return goquery.NewDocumentFromReader(reader)
}

// DetectCharset guesses the charset of data, defaulting to utf-8.
func DetectCharset(data []byte) string {
	if len(data) == 0 {
		return "utf-8"
	}
	result, err := chardet.NewHtmlDetector().DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// NormalizeWhitespace collapses runs of whitespace into one space.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
