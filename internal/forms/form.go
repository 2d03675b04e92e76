package forms

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrControlNotFound = errors.New("control not found")
	ErrReadOnly        = errors.New("control is read-only")
	ErrDisabled        = errors.New("control is disabled")
	ErrNoSuchItem      = errors.New("no such item")
	ErrWrongType       = errors.New("operation not supported by control type")
)

// Control types. Input types not listed here behave like text.
const (
	TypeText     = "text"
	TypePassword = "password"
	TypeHidden   = "hidden"
	TypeTextarea = "textarea"
	TypeCheckbox = "checkbox"
	TypeRadio    = "radio"
	TypeSelect   = "select"
	TypeSubmit   = "submit"
	TypeImage    = "image"
	TypeFile     = "file"
	TypeButton   = "button"
	TypeReset    = "reset"
)

const (
	EnctypeURLEncoded = "application/x-www-form-urlencoded"
	EnctypeMultipart  = "multipart/form-data"
)

// Form is an HTML form and its controls in document order.
type Form struct {
	Name    string
	ID      string
	Action  *url.URL
	Method  string
	Enctype string
	Attrs   map[string]string

	Controls []*Control
}

// Control is one form control. Radio buttons and checkboxes sharing a name
// are separate controls.
type Control struct {
	Type     string
	Name     string
	ID       string
	Value    string
	Checked  bool
	Disabled bool
	ReadOnly bool
	Multiple bool
	Options  []*Option
	File     *FileUpload
	Attrs    map[string]string
}

// Option is one <option> of a select control.
type Option struct {
	Value    string
	Label    string
	Selected bool
	Disabled bool
}

// FileUpload is the content attached to a file control.
type FileUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// IsSubmit reports whether the control can submit the form.
func (c *Control) IsSubmit() bool {
	return c.Type == TypeSubmit || c.Type == TypeImage
}

func (c *Control) textLike() bool {
	switch c.Type {
	case TypeCheckbox, TypeRadio, TypeSelect, TypeSubmit, TypeImage, TypeFile, TypeButton, TypeReset:
		return false
	}
	return true
}

func (c *Control) settable() error {
	if c.Disabled {
		return fmt.Errorf("%w: %q", ErrDisabled, c.Name)
	}
	if c.ReadOnly {
		return fmt.Errorf("%w: %q", ErrReadOnly, c.Name)
	}
	return nil
}

// Attr returns an attribute value or "".
func (f *Form) Attr(name string) string {
	return f.Attrs[strings.ToLower(name)]
}

// Control returns the first control named name.
func (f *Form) Control(name string) (*Control, error) {
	for _, c := range f.Controls {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrControlNotFound, name)
}

// ControlByID returns the control with the given id attribute.
func (f *Form) ControlByID(id string) (*Control, error) {
	for _, c := range f.Controls {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: id %q", ErrControlNotFound, id)
}

func (f *Form) named(name string) []*Control {
	var out []*Control
	for _, c := range f.Controls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Set assigns a single value. Text controls take it verbatim, selects and
// radio groups select the matching item, checkboxes check it.
func (f *Form) Set(name, value string) error {
	group := f.named(name)
	if len(group) == 0 {
		return fmt.Errorf("%w: %q", ErrControlNotFound, name)
	}
	first := group[0]
	switch {
	case first.textLike():
		if err := first.settable(); err != nil {
			return err
		}
		first.Value = value
		return nil
	case first.Type == TypeSelect:
		return f.SetValues(name, value)
	case first.Type == TypeRadio, first.Type == TypeCheckbox:
		return f.Check(name, value, true)
	}
	return fmt.Errorf("%w: set %s %q", ErrWrongType, first.Type, name)
}

// SetValues selects exactly values in a select control or checkbox group.
func (f *Form) SetValues(name string, values ...string) error {
	group := f.named(name)
	if len(group) == 0 {
		return fmt.Errorf("%w: %q", ErrControlNotFound, name)
	}
	first := group[0]

	switch first.Type {
	case TypeSelect:
		if err := first.settable(); err != nil {
			return err
		}
		if !first.Multiple && len(values) > 1 {
			return fmt.Errorf("%w: %q takes one value", ErrWrongType, name)
		}
		for _, v := range values {
			if first.option(v) == nil {
				return fmt.Errorf("%w: %q in %q", ErrNoSuchItem, v, name)
			}
		}
		for _, o := range first.Options {
			o.Selected = false
		}
		for _, v := range values {
			first.option(v).Selected = true
		}
		return nil

	case TypeCheckbox, TypeRadio:
		if first.Type == TypeRadio && len(values) > 1 {
			return fmt.Errorf("%w: radio %q takes one value", ErrWrongType, name)
		}
		for _, v := range values {
			if !slices.ContainsFunc(group, func(c *Control) bool { return c.Value == v }) {
				return fmt.Errorf("%w: %q in %q", ErrNoSuchItem, v, name)
			}
		}
		for _, c := range group {
			if err := c.settable(); err != nil {
				return err
			}
		}
		for _, c := range group {
			c.Checked = slices.Contains(values, c.Value)
		}
		return nil
	}
	return fmt.Errorf("%w: set values on %s %q", ErrWrongType, first.Type, name)
}

// Check sets one checkbox or radio item. Checking a radio item unchecks
// the rest of its group.
func (f *Form) Check(name, value string, on bool) error {
	group := f.named(name)
	if len(group) == 0 {
		return fmt.Errorf("%w: %q", ErrControlNotFound, name)
	}
	idx := slices.IndexFunc(group, func(c *Control) bool {
		return (c.Type == TypeCheckbox || c.Type == TypeRadio) && c.Value == value
	})
	if idx < 0 {
		if group[0].Type != TypeCheckbox && group[0].Type != TypeRadio {
			return fmt.Errorf("%w: check %s %q", ErrWrongType, group[0].Type, name)
		}
		return fmt.Errorf("%w: %q in %q", ErrNoSuchItem, value, name)
	}
	target := group[idx]
	if err := target.settable(); err != nil {
		return err
	}
	if target.Type == TypeRadio && on {
		for _, c := range group {
			if c.Type == TypeRadio {
				c.Checked = false
			}
		}
	}
	target.Checked = on
	return nil
}

// AddFile attaches content to a file control.
func (f *Form) AddFile(name, filename, contentType string, data []byte) error {
	c, err := f.Control(name)
	if err != nil {
		return err
	}
	if c.Type != TypeFile {
		return fmt.Errorf("%w: attach file to %s %q", ErrWrongType, c.Type, name)
	}
	if err := c.settable(); err != nil {
		return err
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	c.File = &FileUpload{Filename: filename, ContentType: contentType, Data: data}
	return nil
}

// Value returns the first value name would submit.
func (f *Form) Value(name string) (string, error) {
	values, err := f.Values(name)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", nil
	}
	return values[0], nil
}

// Values returns every value name would submit, ignoring submit buttons.
func (f *Form) Values(name string) ([]string, error) {
	group := f.named(name)
	if len(group) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrControlNotFound, name)
	}
	var values []string
	for _, c := range group {
		if c.IsSubmit() {
			continue
		}
		values = append(values, c.submitValues()...)
	}
	return values, nil
}

func (c *Control) option(v string) *Option {
	for _, o := range c.Options {
		if o.Value == v && !o.Disabled {
			return o
		}
	}
	for _, o := range c.Options {
		if o.Label == v && !o.Disabled {
			return o
		}
	}
	return nil
}

// submitValues are the values a successful control contributes.
func (c *Control) submitValues() []string {
	switch c.Type {
	case TypeCheckbox, TypeRadio:
		if c.Checked {
			return []string{c.Value}
		}
		return nil
	case TypeSelect:
		var values []string
		for _, o := range c.Options {
			if o.Selected && !o.Disabled {
				values = append(values, o.Value)
			}
		}
		if len(values) == 0 && !c.Multiple {
			for _, o := range c.Options {
				if !o.Disabled {
					return []string{o.Value}
				}
			}
		}
		return values
	case TypeFile:
		if c.File != nil {
			return []string{c.File.Filename}
		}
		return nil
	case TypeButton, TypeReset, TypeSubmit, TypeImage:
		return nil
	}
	return []string{c.Value}
}

func parseForm(s *goquery.Selection, base *url.URL) *Form {
	f := &Form{
		Name:    s.AttrOr("name", ""),
		ID:      s.AttrOr("id", ""),
		Method:  strings.ToUpper(strings.TrimSpace(s.AttrOr("method", http.MethodGet))),
		Enctype: strings.ToLower(strings.TrimSpace(s.AttrOr("enctype", EnctypeURLEncoded))),
		Attrs:   attrs(s),
	}
	if f.Method != http.MethodPost {
		f.Method = http.MethodGet
	}
	if f.Enctype != EnctypeMultipart {
		f.Enctype = EnctypeURLEncoded
	}
	f.Action = base
	if action := strings.TrimSpace(s.AttrOr("action", "")); action != "" {
		if u, err := base.Parse(action); err == nil {
			f.Action = u
		}
	}

	s.Find("input, textarea, select, button").Each(func(i int, el *goquery.Selection) {
		if c := parseControl(el); c != nil {
			f.Controls = append(f.Controls, c)
		}
	})
	return f
}

func parseControl(el *goquery.Selection) *Control {
	c := &Control{
		Name:     el.AttrOr("name", ""),
		ID:       el.AttrOr("id", ""),
		Disabled: el.Is("[disabled]"),
		ReadOnly: el.Is("[readonly]"),
		Attrs:    attrs(el),
	}

	switch goquery.NodeName(el) {
	case "textarea":
		c.Type = TypeTextarea
		c.Value = strings.TrimPrefix(strings.TrimPrefix(el.Text(), "\r"), "\n")
	case "select":
		c.Type = TypeSelect
		c.Multiple = el.Is("[multiple]")
		el.Find("option").Each(func(i int, o *goquery.Selection) {
			label := NormalizeWhitespace(o.Text())
			c.Options = append(c.Options, &Option{
				Value:    o.AttrOr("value", label),
				Label:    label,
				Selected: o.Is("[selected]"),
				Disabled: o.Is("[disabled]"),
			})
		})
	case "button":
		c.Type = strings.ToLower(el.AttrOr("type", TypeSubmit))
		c.Value = el.AttrOr("value", "")
	default:
		c.Type = strings.ToLower(strings.TrimSpace(el.AttrOr("type", TypeText)))
		if c.Type == "" {
			c.Type = TypeText
		}
		c.Value = el.AttrOr("value", "")
		switch c.Type {
		case TypeCheckbox, TypeRadio:
			if _, ok := el.Attr("value"); !ok {
				c.Value = "on"
			}
			c.Checked = el.Is("[checked]")
		case TypeHidden:
			c.ReadOnly = true
		case TypeSubmit:
			if _, ok := el.Attr("value"); !ok {
				c.Value = "Submit"
			}
		}
	}
	return c
}
