package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tagger appends its name to a request header so tests can observe order.
type tagger struct {
	name   string
	order  int
	scheme string
}

func (t *tagger) Order() int { return t.order }

func (t *tagger) Bindings() []Binding {
	return []Binding{{
		Capability: CapRequest,
		Scheme:     t.scheme,
		Request: func(ctx context.Context, d Dispatcher, req *Request) (*Request, error) {
			req.Header.Add("X-Trace", t.name)
			return req, nil
		},
	}}
}

type bindingsOf struct {
	order    int
	bindings []Binding
}

func (b *bindingsOf) Order() int          { return b.order }
func (b *bindingsOf) Bindings() []Binding { return b.bindings }

func runRequestChain(t *testing.T, r *Registry, scheme string) []string {
	t.Helper()
	req, err := NewRequest("", scheme+"://example.com/", nil)
	require.NoError(t, err)
	for _, fn := range r.Resolve().RequestChain(scheme) {
		req, err = fn(context.Background(), nil, req)
		require.NoError(t, err)
	}
	return req.Header.Values("X-Trace")
}

func TestRegistryOrdering(t *testing.T) {
	r := NewRegistry()
	r.Register(&tagger{name: "late", order: 900, scheme: "http"})
	r.Register(&tagger{name: "first-any", order: 500, scheme: AnyScheme})
	r.Register(&tagger{name: "early", order: 100, scheme: "http"})
	r.Register(&tagger{name: "tie-a", order: 500, scheme: "http"})
	r.Register(&tagger{name: "tie-b", order: 500, scheme: "http"})

	// "any" transformers run before scheme ones regardless of order
	assert.Equal(t, []string{"first-any", "early", "tie-a", "tie-b", "late"}, runRequestChain(t, r, "http"))
	assert.Equal(t, []string{"first-any"}, runRequestChain(t, r, "ftp"))
}

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	tr := &tagger{name: "once", order: 1, scheme: "http"}

	assert.True(t, r.Register(tr))
	assert.False(t, r.Register(tr))
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{"once"}, runRequestChain(t, r, "http"))
}

func TestRegistryInvalidatesOnChange(t *testing.T) {
	r := NewRegistry()
	a := &tagger{name: "a", order: 1, scheme: "http"}
	b := &tagger{name: "b", order: 2, scheme: "http"}
	r.Register(a)

	first := r.Resolve()
	assert.Same(t, first, r.Resolve(), "resolution is cached")

	r.Register(b)
	assert.NotSame(t, first, r.Resolve())
	assert.Equal(t, []string{"a", "b"}, runRequestChain(t, r, "http"))

	assert.True(t, r.Unregister(a))
	assert.False(t, r.Unregister(a))
	assert.Equal(t, []string{"b"}, runRequestChain(t, r, "http"))
	assert.Equal(t, []Transformer{b}, r.Transformers())
}

func TestRegistryPanicsOnMalformedBinding(t *testing.T) {
	tests := []struct {
		name    string
		binding Binding
	}{
		{"missing scheme", Binding{Capability: CapRequest, Request: func(ctx context.Context, d Dispatcher, req *Request) (*Request, error) { return req, nil }}},
		{"missing open func", Binding{Capability: CapOpen, Scheme: "http"}},
		{"open on any", Binding{Capability: CapOpen, Scheme: AnyScheme, Open: func(ctx context.Context, req *Request) (*Response, error) { return nil, nil }}},
		{"error without kind", Binding{Capability: CapError, Scheme: "http", Error: func(ctx context.Context, d Dispatcher, req *Request, resp *Response, cause error) (*Response, error) {
			return nil, nil
		}}},
		{"unknown capability", Binding{Scheme: "http"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			assert.Panics(t, func() {
				r.Register(&bindingsOf{bindings: []Binding{tt.binding}})
			})
			assert.Equal(t, 0, r.Len())
		})
	}
}

// valueTransformer is registered by value and carries a slice, so its
// dynamic type has no equality.
type valueTransformer struct{ tags []string }

func (valueTransformer) Order() int          { return 1 }
func (valueTransformer) Bindings() []Binding { return nil }

func TestRegistryRejectsUncomparableTransformer(t *testing.T) {
	r := NewRegistry()
	r.Register(&tagger{name: "kept", order: 1, scheme: "http"})

	v := valueTransformer{tags: []string{"a"}}
	assert.PanicsWithValue(t, "pipeline: pipeline.valueTransformer is not comparable; register a pointer", func() {
		r.Register(v)
	})
	assert.False(t, r.Unregister(v))
	assert.Equal(t, 1, r.Len())

	// a pointer to the same value is fine
	assert.True(t, r.Register(&v))
	assert.False(t, r.Register(&v))
	assert.Equal(t, 2, r.Len())
}

func TestHTTPAndHTTPSShareErrorTable(t *testing.T) {
	r := NewRegistry()
	handler := func(ctx context.Context, d Dispatcher, req *Request, resp *Response, cause error) (*Response, error) {
		return resp, nil
	}
	fallback := func(ctx context.Context, d Dispatcher, req *Request, resp *Response, cause error) (*Response, error) {
		return nil, nil
	}
	r.Register(&bindingsOf{bindings: []Binding{
		{Capability: CapError, Scheme: "http", Kind: "404", Error: handler},
		{Capability: CapError, Scheme: "https", Kind: KindDefault, Error: fallback},
	}})

	tables := r.Resolve()
	assert.Len(t, tables.ErrorHandlers("https", "404"), 2)
	assert.Len(t, tables.ErrorHandlers("http", "500"), 1)
	assert.Len(t, tables.ErrorHandlers("http", KindDefault), 1)
	assert.Empty(t, tables.ErrorHandlers("ftp", "404"))
}

func TestCapabilityString(t *testing.T) {
	assert.Equal(t, "open", CapOpen.String())
	assert.Equal(t, "error", CapError.String())
	assert.Equal(t, "unknown", Capability(0).String())
	assert.Equal(t, "301", StatusKind(301))
}
