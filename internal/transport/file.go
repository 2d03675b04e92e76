package transport

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/GriffinCanCode/navigator/internal/pipeline"
	"github.com/GriffinCanCode/navigator/internal/stream"
	"github.com/gabriel-vasile/mimetype"
)

// ErrRemoteFile is returned for file URLs naming a host other than localhost.
var ErrRemoteFile = errors.New("file url with remote host")

// File opens file:// URLs from the local filesystem.
type File struct{}

// NewFile returns a file transport.
func NewFile() *File {
	return &File{}
}

func (f *File) Order() int { return 0 }

func (f *File) Bindings() []pipeline.Binding {
	return []pipeline.Binding{
		{Capability: pipeline.CapOpen, Scheme: "file", Open: f.Open},
	}
}

// Open serves the named file with a 200 status. Content-Type comes from the
// extension, falling back to content sniffing.
func (f *File) Open(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	if host := req.URL.Hostname(); host != "" && host != "localhost" {
		return nil, fmt.Errorf("%w: %s", ErrRemoteFile, host)
	}
	path := filepath.FromSlash(req.URL.Path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		detected, err := mimetype.DetectFile(path)
		if err != nil {
			return nil, err
		}
		contentType = detected.String()
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	header.Set("Content-Type", contentType)
	header.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	header.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))

	return &pipeline.Response{
		StatusCode: http.StatusOK,
		Reason:     http.StatusText(http.StatusOK),
		Header:     header,
		URL:        req.URL,
		Body:       stream.New(fh),
		Request:    req,
	}, nil
}
