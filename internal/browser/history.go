package browser

import "github.com/GriffinCanCode/navigator/internal/pipeline"

type entry struct {
	request  *pipeline.Request
	response *pipeline.Response
}

// History is the stack of documents a browser has left. Entries whose
// navigation failed before any response arrived keep a nil response.
type History struct {
	entries []entry
}

// Push records a document.
func (h *History) Push(req *pipeline.Request, resp *pipeline.Response) {
	h.entries = append(h.entries, entry{request: req, response: resp})
}

// Back pops n entries, then keeps popping past entries without a
// response. Nothing is popped when the stack would underflow.
func (h *History) Back(n int) (*pipeline.Request, *pipeline.Response, bool) {
	i := len(h.entries)
	var resp *pipeline.Response
	for n > 0 || resp == nil {
		if i == 0 {
			return nil, nil, false
		}
		i--
		resp = h.entries[i].response
		n--
	}
	e := h.entries[i]
	for j := i; j < len(h.entries); j++ {
		h.entries[j] = entry{}
	}
	h.entries = h.entries[:i]
	return e.request, e.response, true
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Clear closes every retained response and empties the stack.
func (h *History) Clear() {
	for _, e := range h.entries {
		_ = e.response.Close()
	}
	h.entries = nil
}
