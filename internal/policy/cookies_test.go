package policy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookiesSurviveRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		http.Redirect(w, r, "/home", http.StatusFound)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.Header.Get("Cookie"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	o, _ := newTestOpener(t, testConfig())
	resp, err := o.Open(context.Background(), newRequest(t, "", srv.URL+"/login", nil))
	require.NoError(t, err)
	assert.Equal(t, "session=abc", readAll(t, resp))

	// later navigations keep sending it
	resp, err = o.Open(context.Background(), newRequest(t, "", srv.URL+"/home", nil))
	require.NoError(t, err)
	assert.Equal(t, "session=abc", readAll(t, resp))
}

func TestCookiesExplicitHeaderWins(t *testing.T) {
	jar, err := NewCookieJar()
	require.NoError(t, err)
	c := NewCookies(jar)

	req := newRequest(t, "", "http://example.com/", nil)
	jar.SetCookies(req.URL, []*http.Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}})

	out, err := c.request(context.Background(), nil, req)
	require.NoError(t, err)
	assert.Equal(t, "a=1; b=2", out.UnredirectedHeader.Get("Cookie"))

	manual := newRequest(t, "", "http://example.com/", nil)
	manual.Header.Set("Cookie", "mine=1")
	out, err = c.request(context.Background(), nil, manual)
	require.NoError(t, err)
	assert.Equal(t, "mine=1", out.HeaderValue("Cookie"))
	assert.Empty(t, out.UnredirectedHeader.Get("Cookie"))
}

func TestCookiesDisabled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/set", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.Header.Get("Cookie"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig()
	cfg.Cookies.Enabled = false
	o, _ := newTestOpener(t, cfg)

	_, err := o.Open(context.Background(), newRequest(t, "", srv.URL+"/set", nil))
	require.NoError(t, err)
	resp, err := o.Open(context.Background(), newRequest(t, "", srv.URL+"/echo", nil))
	require.NoError(t, err)
	assert.Empty(t, readAll(t, resp))
}
