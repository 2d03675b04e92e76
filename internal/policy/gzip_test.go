package policy

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := io.WriteString(zw, s)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestGzipDecodesBody(t *testing.T) {
	payload := gzipped(t, "<html><title>compressed</title></html>")
	accept := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept <- r.Header.Get("Accept-Encoding")
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(payload)
	}))
	defer srv.Close()

	o, _ := newTestOpener(t, testConfig())
	resp, err := o.Open(context.Background(), newRequest(t, "", srv.URL+"/", nil))
	require.NoError(t, err)

	assert.Equal(t, "gzip", <-accept)
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
	assert.Empty(t, resp.Header.Get("Content-Length"))
	assert.Equal(t, "<html><title>compressed</title></html>", readAll(t, resp))

	// decoded bytes replay like any other body
	_, err = resp.Body.Seek(0, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, "<html><title>compressed</title></html>", readAll(t, resp))
}

func TestGzipLeavesBrokenEncodingAlone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		io.WriteString(w, "plain text after all")
	}))
	defer srv.Close()

	o, _ := newTestOpener(t, testConfig())
	resp, err := o.Open(context.Background(), newRequest(t, "", srv.URL+"/", nil))
	require.NoError(t, err)
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	assert.Equal(t, "plain text after all", readAll(t, resp))
}

func TestGzipKeepsExplicitAcceptEncoding(t *testing.T) {
	req := newRequest(t, "", "http://example.com/", nil)
	req.Header.Set("Accept-Encoding", "identity")

	out, err := NewGzip().request(context.Background(), nil, req)
	require.NoError(t, err)
	assert.Equal(t, "identity", out.Header.Get("Accept-Encoding"))
}
