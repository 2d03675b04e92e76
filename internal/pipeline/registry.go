package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Capability is what a binding contributes to the pipeline.
type Capability int

const (
	CapOpen Capability = iota + 1
	CapRequest
	CapResponse
	CapError
)

func (c Capability) String() string {
	switch c {
	case CapOpen:
		return "open"
	case CapRequest:
		return "request"
	case CapResponse:
		return "response"
	case CapError:
		return "error"
	default:
		return "unknown"
	}
}

// AnyScheme binds a request or response transformer to every scheme.
const AnyScheme = "any"

// Error kinds besides numeric statuses.
const (
	KindDefault   = "default"
	KindTransport = "transport"
	KindRefresh   = "refresh"
)

// StatusKind returns the error kind for an HTTP status code.
func StatusKind(code int) string {
	return strconv.Itoa(code)
}

// Dispatcher is the view of the pipeline handed to transformers so they can
// issue follow-up requests or route errors.
type Dispatcher interface {
	Open(ctx context.Context, req *Request) (*Response, error)
	DispatchError(ctx context.Context, scheme, kind string, req *Request, resp *Response, cause error) (*Response, error)
}

// OpenFunc produces a response for a scheme. (nil, nil) lets the next
// handler try.
type OpenFunc func(ctx context.Context, req *Request) (*Response, error)

// RequestFunc may replace or mutate the request before it is sent.
type RequestFunc func(ctx context.Context, d Dispatcher, req *Request) (*Request, error)

// ResponseFunc may replace or mutate the response after it is received.
type ResponseFunc func(ctx context.Context, d Dispatcher, req *Request, resp *Response) (*Response, error)

// ErrorFunc handles an error kind. (resp, nil) handles it, (nil, nil)
// declines, (nil, err) terminates the chain with err.
type ErrorFunc func(ctx context.Context, d Dispatcher, req *Request, resp *Response, cause error) (*Response, error)

// Binding declares one capability of a transformer for one scheme.
type Binding struct {
	Capability Capability
	Scheme     string
	// Kind selects the error kind for CapError bindings.
	Kind string

	Open     OpenFunc
	Request  RequestFunc
	Response ResponseFunc
	Error    ErrorFunc
}

func (b Binding) validate() error {
	if b.Scheme == "" {
		return fmt.Errorf("%s binding without scheme", b.Capability)
	}
	switch b.Capability {
	case CapOpen:
		if b.Open == nil {
			return fmt.Errorf("open binding for %q without function", b.Scheme)
		}
		if b.Scheme == AnyScheme {
			return fmt.Errorf("open binding cannot target %q", AnyScheme)
		}
	case CapRequest:
		if b.Request == nil {
			return fmt.Errorf("request binding for %q without function", b.Scheme)
		}
	case CapResponse:
		if b.Response == nil {
			return fmt.Errorf("response binding for %q without function", b.Scheme)
		}
	case CapError:
		if b.Error == nil {
			return fmt.Errorf("error binding for %q/%q without function", b.Scheme, b.Kind)
		}
		if b.Kind == "" {
			return fmt.Errorf("error binding for %q without kind", b.Scheme)
		}
	default:
		return fmt.Errorf("unknown capability %d", b.Capability)
	}
	return nil
}

// Transformer contributes bindings to a pipeline. Transformers with a lower
// Order run first; ties keep registration order. Implementations should be
// pointer types so registration identity is well defined.
type Transformer interface {
	Order() int
	Bindings() []Binding
}

// Tables is the resolved dispatch view of a registry. It is immutable.
type Tables struct {
	open     map[string][]OpenFunc
	request  map[string][]RequestFunc
	response map[string][]ResponseFunc
	errors   map[string]map[string][]ErrorFunc
}

// errorTable maps a scheme to its error table; http and https share one.
func errorTable(scheme string) string {
	if scheme == "https" {
		return "http"
	}
	return scheme
}

// OpenHandlers returns the open handlers for scheme in order.
func (t *Tables) OpenHandlers(scheme string) []OpenFunc {
	return t.open[scheme]
}

// RequestChain returns the "any" request transformers followed by the
// scheme-specific ones.
func (t *Tables) RequestChain(scheme string) []RequestFunc {
	chain := append([]RequestFunc(nil), t.request[AnyScheme]...)
	if scheme != AnyScheme {
		chain = append(chain, t.request[scheme]...)
	}
	return chain
}

// ResponseChain returns the "any" response transformers followed by the
// scheme-specific ones.
func (t *Tables) ResponseChain(scheme string) []ResponseFunc {
	chain := append([]ResponseFunc(nil), t.response[AnyScheme]...)
	if scheme != AnyScheme {
		chain = append(chain, t.response[scheme]...)
	}
	return chain
}

// ErrorHandlers returns the handlers for kind followed by the default
// handlers of the scheme's error table.
func (t *Tables) ErrorHandlers(scheme, kind string) []ErrorFunc {
	table := t.errors[errorTable(scheme)]
	if table == nil {
		return nil
	}
	chain := append([]ErrorFunc(nil), table[kind]...)
	if kind != KindDefault {
		chain = append(chain, table[KindDefault]...)
	}
	return chain
}

// Schemes lists the schemes with an open handler.
func (t *Tables) Schemes() []string {
	schemes := make([]string, 0, len(t.open))
	for s := range t.open {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

type entry struct {
	t   Transformer
	seq uint64
}

// Registry holds transformers and lazily resolves them into Tables.
type Registry struct {
	mu      sync.Mutex
	entries []entry
	seq     uint64
	tables  *Tables
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds t. Registering the same transformer again is a no-op and
// returns false. Malformed bindings panic, as does a transformer whose
// dynamic type cannot be compared for identity.
func (r *Registry) Register(t Transformer) bool {
	if !identifiable(t) {
		panic(fmt.Sprintf("pipeline: %T is not comparable; register a pointer", t))
	}
	for _, b := range t.Bindings() {
		if err := b.validate(); err != nil {
			panic(fmt.Sprintf("pipeline: %T: %v", t, err))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.t == t {
			return false
		}
	}
	r.seq++
	r.entries = append(r.entries, entry{t: t, seq: r.seq})
	r.tables = nil
	return true
}

// Unregister removes t and reports whether it was present.
func (r *Registry) Unregister(t Transformer) bool {
	if !identifiable(t) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.t == t {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			r.tables = nil
			return true
		}
	}
	return false
}

func identifiable(t Transformer) bool {
	return t != nil && reflect.ValueOf(t).Comparable()
}

// Len returns the number of registered transformers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Transformers returns the registered transformers in dispatch order.
func (r *Registry) Transformers() []Transformer {
	r.mu.Lock()
	defer r.mu.Unlock()
	sorted := r.sorted()
	out := make([]Transformer, len(sorted))
	for i, e := range sorted {
		out[i] = e.t
	}
	return out
}

// Resolve returns the dispatch tables, rebuilding them if the registry
// changed since the last call.
func (r *Registry) Resolve() *Tables {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tables != nil {
		return r.tables
	}

	t := &Tables{
		open:     make(map[string][]OpenFunc),
		request:  make(map[string][]RequestFunc),
		response: make(map[string][]ResponseFunc),
		errors:   make(map[string]map[string][]ErrorFunc),
	}
	for _, e := range r.sorted() {
		for _, b := range e.t.Bindings() {
			scheme := strings.ToLower(b.Scheme)
			switch b.Capability {
			case CapOpen:
				t.open[scheme] = append(t.open[scheme], b.Open)
			case CapRequest:
				t.request[scheme] = append(t.request[scheme], b.Request)
			case CapResponse:
				t.response[scheme] = append(t.response[scheme], b.Response)
			case CapError:
				key := errorTable(scheme)
				if t.errors[key] == nil {
					t.errors[key] = make(map[string][]ErrorFunc)
				}
				t.errors[key][b.Kind] = append(t.errors[key][b.Kind], b.Error)
			}
		}
	}
	r.tables = t
	return t
}

// sorted returns entries by (Order, registration sequence). Caller holds mu.
func (r *Registry) sorted() []entry {
	sorted := append([]entry(nil), r.entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		oi, oj := sorted[i].t.Order(), sorted[j].t.Order()
		if oi != oj {
			return oi < oj
		}
		return sorted[i].seq < sorted[j].seq
	})
	return sorted
}
