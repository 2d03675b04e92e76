package forms

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/GriffinCanCode/navigator/internal/pipeline"
)

type pair struct {
	name  string
	value string
	file  *FileUpload
}

// Submitter returns the submit control Click would use for name. An empty
// name picks the first enabled submit control, which may be nil.
func (f *Form) Submitter(name string) (*Control, error) {
	for _, c := range f.Controls {
		if !c.IsSubmit() || c.Disabled {
			continue
		}
		if name == "" || c.Name == name {
			return c, nil
		}
	}
	if name == "" {
		return nil, nil
	}
	return nil, fmt.Errorf("%w: submit control %q", ErrControlNotFound, name)
}

// Click builds the request that submitting the form through the named
// submit control would send. The control's formaction, formmethod and
// formenctype attributes override the form's own.
func (f *Form) Click(name string) (*pipeline.Request, error) {
	submitter, err := f.Submitter(name)
	if err != nil {
		return nil, err
	}

	action, method, enctype := f.Action, f.Method, f.Enctype
	if submitter != nil {
		if v := strings.TrimSpace(submitter.Attrs["formaction"]); v != "" && action != nil {
			if u, err := action.Parse(v); err == nil {
				action = u
			}
		}
		if v := strings.ToUpper(strings.TrimSpace(submitter.Attrs["formmethod"])); v == http.MethodGet || v == http.MethodPost {
			method = v
		}
		if v := strings.ToLower(strings.TrimSpace(submitter.Attrs["formenctype"])); v == EnctypeURLEncoded || v == EnctypeMultipart {
			enctype = v
		}
	}
	if action == nil {
		return nil, fmt.Errorf("form %q has no action", f.Name)
	}

	pairs := f.pairs(submitter)
	if method == http.MethodGet {
		u := *action
		u.RawQuery = encode(pairs)
		return pipeline.NewRequestURL(http.MethodGet, &u, nil), nil
	}

	var body []byte
	contentType := EnctypeURLEncoded
	if enctype == EnctypeMultipart {
		body, contentType, err = encodeMultipart(pairs)
		if err != nil {
			return nil, fmt.Errorf("encode form %q: %w", f.Name, err)
		}
	} else {
		body = []byte(encode(pairs))
	}
	u := *action
	req := pipeline.NewRequestURL(http.MethodPost, &u, body)
	req.Header.Set("Content-Type", contentType)
	return req, nil
}

// pairs lists the successful controls in document order.
func (f *Form) pairs(submitter *Control) []pair {
	var out []pair
	for _, c := range f.Controls {
		if c.Name == "" && c.Type != TypeImage {
			continue
		}
		if c.Disabled {
			continue
		}
		switch {
		case c.IsSubmit():
			if c != submitter {
				continue
			}
			if c.Type == TypeImage {
				prefix := ""
				if c.Name != "" {
					prefix = c.Name + "."
				}
				out = append(out, pair{name: prefix + "x", value: "1"}, pair{name: prefix + "y", value: "1"})
				continue
			}
			out = append(out, pair{name: c.Name, value: c.Value})
		case c.Type == TypeFile:
			if c.File == nil {
				out = append(out, pair{name: c.Name, file: &FileUpload{ContentType: "application/octet-stream"}})
				continue
			}
			out = append(out, pair{name: c.Name, value: c.File.Filename, file: c.File})
		default:
			for _, v := range c.submitValues() {
				out = append(out, pair{name: c.Name, value: v})
			}
		}
	}
	return out
}

// encode keeps document order, which url.Values would lose.
func encode(pairs []pair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

func encodeMultipart(pairs []pair) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range pairs {
		if p.file == nil {
			if err := w.WriteField(p.name, p.value); err != nil {
				return nil, "", err
			}
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.name, p.file.Filename))
		h.Set("Content-Type", p.file.ContentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(p.file.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
