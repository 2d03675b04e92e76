package transport

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/GriffinCanCode/navigator/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

func TestFileOpen(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(page, []byte("<html><title>local</title></html>"), 0o644))
	blob := filepath.Join(dir, "blob")
	require.NoError(t, os.WriteFile(blob, []byte("%PDF-1.4\n"), 0o644))

	f := NewFile()

	t.Run("extension decides content type", func(t *testing.T) {
		resp, err := f.Open(context.Background(), request(t, "", fileURL(page), nil))
		require.NoError(t, err)
		defer resp.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/html", resp.ContentType())
		assert.Equal(t, "33", resp.Header.Get("Content-Length"))
		body, err := resp.Body.ReadN(-1)
		require.NoError(t, err)
		assert.Contains(t, string(body), "local")
	})

	t.Run("sniffed without extension", func(t *testing.T) {
		resp, err := f.Open(context.Background(), request(t, "", fileURL(blob), nil))
		require.NoError(t, err)
		defer resp.Close()
		assert.Equal(t, "application/pdf", resp.ContentType())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := f.Open(context.Background(), request(t, "", fileURL(filepath.Join(dir, "nope")), nil))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := f.Open(context.Background(), request(t, "", fileURL(dir), nil))
		assert.Error(t, err)
	})

	t.Run("remote host", func(t *testing.T) {
		_, err := f.Open(context.Background(), request(t, "", "file://example.com/etc/passwd", nil))
		assert.ErrorIs(t, err, ErrRemoteFile)
	})
}

func TestFileThroughOpener(t *testing.T) {
	o := pipeline.New()
	o.Register(NewFile())

	_, err := o.Open(context.Background(), request(t, "", fileURL(filepath.Join(t.TempDir(), "gone.txt")), nil))
	var te *pipeline.TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
