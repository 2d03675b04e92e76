package browser

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/GriffinCanCode/navigator/internal/forms"
	"github.com/GriffinCanCode/navigator/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBackOnFreshBrowser(t *testing.T) {
	b := newBrowser(t)

	_, err := b.Back(context.Background(), 1)

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.ErrorIs(t, err, ErrHistoryStart)
	assert.Equal(t, 0, b.History())
}

func TestOpenBackSequence(t *testing.T) {
	s := newSite(t, false, map[string]http.HandlerFunc{
		"/a": text("page a"),
		"/b": text("page b"),
		"/c": text("page c"),
	})
	b := newBrowser(t)
	ctx := context.Background()

	respA, err := b.Open(ctx, s.URL+"/a")
	require.NoError(t, err)
	assert.Equal(t, "page a", body(t, respA))
	assert.Equal(t, 0, b.History())

	respB, err := b.Open(ctx, s.URL+"/b")
	require.NoError(t, err)
	assert.Equal(t, "page b", body(t, respB))

	_, err = b.Open(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, b.History())

	back, err := b.Back(ctx, 2)
	require.NoError(t, err)
	assert.True(t, back.Body.Shares(respA.Body), "back must alias the earlier document")
	assert.Equal(t, "page a", body(t, back))
	assert.Equal(t, 1, s.Hits("/a"))

	current, err := b.URL()
	require.NoError(t, err)
	assert.Equal(t, s.URL+"/a", current)
	assert.Equal(t, 0, b.History())

	_, err = b.Back(ctx, 1)
	assert.ErrorIs(t, err, ErrHistoryStart)
	current, err = b.URL()
	require.NoError(t, err)
	assert.Equal(t, s.URL+"/a", current, "failed back leaves the document in place")
}

func TestBackReloadsIncompleteBody(t *testing.T) {
	s := newSite(t, false, map[string]http.HandlerFunc{
		"/a": text(strings.Repeat("a", 4096)),
		"/b": text("page b"),
	})
	b := newBrowser(t)
	ctx := context.Background()

	_, err := b.Open(ctx, s.URL+"/a")
	require.NoError(t, err)
	_, err = b.Open(ctx, s.URL+"/b")
	require.NoError(t, err)

	resp, err := b.Back(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 4096), body(t, resp))
	assert.Equal(t, 2, s.Hits("/a"))
	assert.Equal(t, 0, b.History())
}

func TestReloadKeepsHistory(t *testing.T) {
	s := newSite(t, false, map[string]http.HandlerFunc{
		"/a": text("a"),
		"/b": text("b"),
	})
	b := newBrowser(t)
	ctx := context.Background()

	_, err := b.Reload(ctx)
	assert.ErrorIs(t, err, ErrNoDocument)

	_, err = b.Open(ctx, s.URL+"/a")
	require.NoError(t, err)
	resp, err := b.Open(ctx, s.URL+"/b")
	require.NoError(t, err)
	assert.Equal(t, "b", body(t, resp))

	resp, err = b.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", body(t, resp))
	assert.Equal(t, 1, b.History())
	assert.Equal(t, 2, s.Hits("/b"))
}

func TestFindLinkAndSelectForm(t *testing.T) {
	s := newSite(t, false, map[string]http.HandlerFunc{
		"/": html(`<html><head><title>Home</title></head><body>
			<a href="foo">Foo</a>
			<a href="/bar" id="second">Bar</a>
			<a href="/bar?2">Bar</a>
			<form name="search" action="/find"><input name="q"></form>
		</body></html>`),
	})
	b := newBrowser(t)

	_, err := b.Open(context.Background(), s.URL+"/")
	require.NoError(t, err)
	assert.True(t, b.ViewingHTML())

	title, err := b.Title()
	require.NoError(t, err)
	assert.Equal(t, "Home", title)

	link, err := b.FindLink(LinkQuery{Nr: 0})
	require.NoError(t, err)
	assert.Equal(t, "foo", link.URL)

	link, err = b.FindLink(LinkQuery{Text: "Bar", Nr: 1})
	require.NoError(t, err)
	assert.Equal(t, "/bar?2", link.URL)

	link, err = b.FindLink(LinkQuery{ID: "second"})
	require.NoError(t, err)
	assert.Equal(t, "/bar", link.URL)

	_, err = b.FindLink(LinkQuery{Text: "Bar", Nr: 2})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.ErrorIs(t, err, ErrLinkNotFound)

	err = b.SelectForm(FormQuery{Name: "blah"})
	require.ErrorAs(t, err, &notFound)
	assert.ErrorIs(t, err, ErrFormNotFound)

	_, err = b.Form()
	assert.ErrorIs(t, err, ErrNoFormSelected)

	require.NoError(t, b.SelectForm(FormQuery{Name: "search", Action: s.URL + "/find"}))
	form, err := b.Form()
	require.NoError(t, err)
	assert.Equal(t, "search", form.Name)
}

func TestNotViewingHTML(t *testing.T) {
	s := newSite(t, false, map[string]http.HandlerFunc{
		"/plain": text("<a href='x'>not parsed</a>"),
	})
	b := newBrowser(t)

	_, err := b.Links()
	assert.ErrorIs(t, err, ErrNoDocument)

	_, err = b.Open(context.Background(), s.URL+"/plain")
	require.NoError(t, err)
	assert.False(t, b.ViewingHTML())

	_, err = b.Links()
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.ErrorIs(t, err, ErrNotHTML)
	assert.ErrorIs(t, b.SelectForm(FormQuery{}), ErrNotHTML)
}

func TestIsHTML(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		url         string
		want        bool
	}{
		{"html header", "text/html; charset=utf-8", "http://example.com/x.txt", true},
		{"xhtml header", "application/xhtml+xml", "http://example.com/", true},
		{"plain header wins over extension", "text/plain", "http://example.com/x.html", false},
		{"htm extension", "", "http://example.com/page.HTM", true},
		{"xhtml extension", "", "file:///tmp/doc.xhtml", true},
		{"no hint", "", "http://example.com/data", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := pipeline.NewRequest("GET", tt.url, nil)
			require.NoError(t, err)
			header := http.Header{}
			if tt.contentType != "" {
				header.Set("Content-Type", tt.contentType)
			}
			assert.Equal(t, tt.want, isHTML(pipeline.NewResponse(req, http.StatusOK, header, nil)))
		})
	}
}

func TestRelativeOpenNeedsDocument(t *testing.T) {
	b := newBrowser(t)

	_, err := b.Open(context.Background(), "foo.html")

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.ErrorIs(t, err, ErrNoDocument)
	assert.Nil(t, b.Request())
}

func TestRefererOnFollowLink(t *testing.T) {
	plain := newSite(t, false, map[string]http.HandlerFunc{
		"/page":   html(`<a href="/target">same scheme</a>`),
		"/target": text("target"),
	})

	t.Run("http to http strips fragment", func(t *testing.T) {
		b := newBrowser(t)
		ctx := context.Background()

		_, err := b.Open(ctx, plain.URL+"/page#section")
		require.NoError(t, err)
		_, err = b.FollowLink(ctx, LinkQuery{Text: "same scheme"})
		require.NoError(t, err)

		referers := plain.Referers("/target")
		require.NotEmpty(t, referers)
		assert.Equal(t, plain.URL+"/page", referers[len(referers)-1])
	})

	t.Run("https to http omitted", func(t *testing.T) {
		secure := newSite(t, true, map[string]http.HandlerFunc{
			"/page": html(`<a href="` + plain.URL + `/target">downgrade</a>`),
		})
		b := newBrowser(t)
		ctx := context.Background()

		_, err := b.Open(ctx, secure.URL+"/page")
		require.NoError(t, err)
		_, err = b.FollowLink(ctx, LinkQuery{Text: "downgrade"})
		require.NoError(t, err)

		referers := plain.Referers("/target")
		require.NotEmpty(t, referers)
		assert.Empty(t, referers[len(referers)-1])
	})

	t.Run("plain open sends none", func(t *testing.T) {
		b := newBrowser(t)
		_, err := b.Open(context.Background(), plain.URL+"/target")
		require.NoError(t, err)

		referers := plain.Referers("/target")
		assert.Empty(t, referers[len(referers)-1])
	})
}

func TestSubmitForm(t *testing.T) {
	s := newSite(t, false, map[string]http.HandlerFunc{
		"/login": html(`<form name="login" action="/session" method="post">
			<input name="user"><input type="password" name="pass">
			<input type="submit" name="go" value="Go">
		</form>`),
		"/session": func(w http.ResponseWriter, r *http.Request) {
			data, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(r.Method + " " + string(data)))
		},
	})
	b := newBrowser(t)
	ctx := context.Background()

	_, err := b.Submit(ctx, "")
	assert.ErrorIs(t, err, ErrNoFormSelected)

	_, err = b.Open(ctx, s.URL+"/login")
	require.NoError(t, err)
	require.NoError(t, b.SelectForm(FormQuery{Name: "login"}))
	form, err := b.Form()
	require.NoError(t, err)
	require.NoError(t, form.Set("user", "alice"))
	require.NoError(t, form.Set("pass", "secret"))

	req, err := b.Click("go")
	require.NoError(t, err)
	assert.Equal(t, s.URL+"/login", req.Referrer)

	resp, err := b.Submit(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, "POST user=alice&pass=secret&go=Go", body(t, resp))
	assert.Equal(t, 1, b.History())
	assert.Equal(t, []string{s.URL + "/login"}, s.Referers("/session"))

	_, err = b.Form()
	assert.ErrorIs(t, err, ErrNoFormSelected, "navigation clears the selected form")
}

func TestErrorResponseBecomesCurrent(t *testing.T) {
	s := newSite(t, false, map[string]http.HandlerFunc{
		"/ok": text("ok"),
		"/missing": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("<title>Gone</title>"))
		},
	})
	b := newBrowser(t)
	ctx := context.Background()

	_, err := b.Open(ctx, s.URL+"/ok")
	require.NoError(t, err)

	resp, err := b.Open(ctx, s.URL+"/missing")
	var httpErr *pipeline.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode())
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	current, err := b.URL()
	require.NoError(t, err)
	assert.Equal(t, s.URL+"/missing", current)
	assert.Equal(t, 1, b.History())

	title, err := b.Title()
	require.NoError(t, err)
	assert.Equal(t, "Gone", title)
}

func TestTransportFailureSkippedByBack(t *testing.T) {
	s := newSite(t, false, map[string]http.HandlerFunc{
		"/a": text("a"),
		"/b": text("b"),
	})
	dead := newSite(t, false, nil)
	deadURL := dead.URL + "/nowhere"
	dead.Close()

	b := newBrowser(t)
	ctx := context.Background()

	resp, err := b.Open(ctx, s.URL+"/a")
	require.NoError(t, err)
	assert.Equal(t, "a", body(t, resp))

	resp, err = b.Open(ctx, deadURL)
	require.Error(t, err)
	assert.True(t, pipeline.IsTransport(err))
	assert.Nil(t, resp)
	require.NotNil(t, b.Request())
	assert.Equal(t, deadURL, b.Request().URL.String())
	assert.Nil(t, b.Response())

	_, err = b.Open(ctx, s.URL+"/b")
	require.NoError(t, err)
	assert.Equal(t, 2, b.History())

	resp, err = b.Back(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, s.URL+"/a", resp.FinalURL().String())
	assert.Equal(t, 0, b.History())
}

func TestRedirectFinalURL(t *testing.T) {
	s := newSite(t, false, map[string]http.HandlerFunc{
		"/old": func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/new", http.StatusFound)
		},
		"/new": text("new"),
	})
	b := newBrowser(t)

	resp, err := b.Open(context.Background(), s.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, "new", body(t, resp))

	current, err := b.URL()
	require.NoError(t, err)
	assert.Equal(t, s.URL+"/new", current)
	assert.Equal(t, s.URL+"/old", b.Request().URL.String())
}

func TestClose(t *testing.T) {
	s := newSite(t, false, map[string]http.HandlerFunc{
		"/a": text("a"),
		"/b": text("b"),
	})
	b := newBrowser(t)
	ctx := context.Background()

	_, err := b.Open(ctx, s.URL+"/a")
	require.NoError(t, err)
	_, err = b.Open(ctx, s.URL+"/b")
	require.NoError(t, err)

	require.NoError(t, b.Close())
	assert.Equal(t, 0, b.History())
	assert.Nil(t, b.Response())
	assert.False(t, b.ViewingHTML())

	_, err = b.Open(ctx, s.URL+"/a")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = b.Back(ctx, 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = b.Reload(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = b.URL()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = b.Links()
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, b.Close())
	assert.Equal(t, 1, s.Hits("/a"))
}

func TestPageParsedOncePerDocument(t *testing.T) {
	opener := new(MockOpener)
	parser := new(MockParser)
	b := newBrowser(t, WithOpener(opener), WithParser(parser))

	req, err := pipeline.NewRequest("GET", "http://example.com/", nil)
	require.NoError(t, err)
	header := http.Header{"Content-Type": {"text/html"}}
	opener.On("Open", mock.Anything, mock.AnythingOfType("*pipeline.Request")).
		Return(pipeline.NewResponse(req, http.StatusOK, header, []byte("<html></html>")), nil)

	base, _ := url.Parse("http://example.com/")
	page := &forms.Page{Base: base, Title: "Mocked", Links: []*forms.Link{{Base: base, URL: "foo", Tag: "a"}}}
	parser.On("Parse", mock.AnythingOfType("*pipeline.Response")).Return(page, nil).Once()

	_, err = b.Open(context.Background(), "http://example.com/")
	require.NoError(t, err)

	title, err := b.Title()
	require.NoError(t, err)
	assert.Equal(t, "Mocked", title)
	links, err := b.Links()
	require.NoError(t, err)
	assert.Len(t, links, 1)

	parser.AssertNumberOfCalls(t, "Parse", 1)
	opener.AssertExpectations(t)
}

func TestParseErrorIsReturned(t *testing.T) {
	opener := new(MockOpener)
	parser := new(MockParser)
	b := newBrowser(t, WithOpener(opener), WithParser(parser))

	req, err := pipeline.NewRequest("GET", "http://example.com/", nil)
	require.NoError(t, err)
	opener.On("Open", mock.Anything, mock.Anything).
		Return(pipeline.NewResponse(req, http.StatusOK, http.Header{"Content-Type": {"text/html"}}, nil), nil)
	parseErr := errors.New("broken document")
	parser.On("Parse", mock.Anything).Return(nil, parseErr)

	_, err = b.Open(context.Background(), "http://example.com/")
	require.NoError(t, err)

	_, err = b.Forms()
	assert.ErrorIs(t, err, parseErr)
}

func TestNavigationMetrics(t *testing.T) {
	s := newSite(t, false, map[string]http.HandlerFunc{"/a": text("a")})
	b := newBrowser(t)
	ctx := context.Background()

	_, err := b.Open(ctx, s.URL+"/a")
	require.NoError(t, err)
	_, err = b.Back(ctx, 1)
	require.Error(t, err)

	snap := b.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.Navigations)
	assert.Equal(t, int64(1), snap.FailedNavs)
}
