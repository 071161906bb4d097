package domain

import "strings"

// pseudoHeaderOrder fixes the canonical ordering of HTTP/2-style
// pseudo-headers so Set-before-regular-headers holds regardless of the
// order callers set them in.
var pseudoHeaderOrder = map[string]int{
	":method":    0,
	":scheme":    1,
	":authority": 2,
	":path":      3,
	":status":    4,
}

type headerEntry struct {
	name  string
	value string
}

// HttpHeaders is an ordered multimap of lowercased name -> value(s), with
// the invariant that pseudo-headers (:status, :method, :path, :scheme,
// :authority) always sort before regular headers.
//
// Request/response header blocks are set-once per name; trailers
// accumulate. Which discipline applies is the caller's responsibility -
// HttpHeaders itself only enforces ordering, not cardinality, the same
// way net/http.Header leaves cardinality to its caller.
type HttpHeaders struct {
	entries []headerEntry
}

// NewHttpHeaders returns an empty, ready-to-use header block.
func NewHttpHeaders() *HttpHeaders {
	return &HttpHeaders{}
}

func isPseudoHeader(name string) bool {
	return len(name) > 0 && name[0] == ':'
}

// Set replaces all values for name with a single value, inserting at the
// position the pseudo/regular invariant requires.
func (h *HttpHeaders) Set(name, value string) {
	name = strings.ToLower(name)
	h.removeAll(name)
	h.insert(name, value)
}

// Add appends a value for name without removing existing values -
// trailer accumulation semantics.
func (h *HttpHeaders) Add(name, value string) {
	name = strings.ToLower(name)
	h.insert(name, value)
}

func (h *HttpHeaders) insert(name, value string) {
	entry := headerEntry{name: name, value: value}
	if isPseudoHeader(name) {
		// Insert after every pseudo-header that ranks at or before name in
		// pseudoHeaderOrder, keeping pseudo-headers in their canonical
		// relative order; unlisted pseudo-headers rank last.
		rank := func(n string) int {
			if r, ok := pseudoHeaderOrder[n]; ok {
				return r
			}
			return len(pseudoHeaderOrder)
		}
		idx := 0
		for i, e := range h.entries {
			if !isPseudoHeader(e.name) {
				break
			}
			if rank(e.name) <= rank(name) {
				idx = i + 1
			}
		}
		h.entries = append(h.entries, headerEntry{})
		copy(h.entries[idx+1:], h.entries[idx:])
		h.entries[idx] = entry
		return
	}
	h.entries = append(h.entries, entry)
}

func (h *HttpHeaders) removeAll(name string) {
	out := h.entries[:0]
	for _, e := range h.entries {
		if e.name != name {
			out = append(out, e)
		}
	}
	h.entries = out
}

// Get returns the first value for name, or "" if absent.
func (h *HttpHeaders) Get(name string) string {
	name = strings.ToLower(name)
	for _, e := range h.entries {
		if e.name == name {
			return e.value
		}
	}
	return ""
}

// Values returns every value set for name, in insertion order.
func (h *HttpHeaders) Values(name string) []string {
	name = strings.ToLower(name)
	var out []string
	for _, e := range h.entries {
		if e.name == name {
			out = append(out, e.value)
		}
	}
	return out
}

// Contains reports whether name has at least one value.
func (h *HttpHeaders) Contains(name string) bool {
	return h.Get(name) != "" || h.hasAny(strings.ToLower(name))
}

func (h *HttpHeaders) hasAny(name string) bool {
	for _, e := range h.entries {
		if e.name == name {
			return true
		}
	}
	return false
}

// Range calls fn for every entry in order, pseudo-headers first.
func (h *HttpHeaders) Range(fn func(name, value string)) {
	for _, e := range h.entries {
		fn(e.name, e.value)
	}
}

// Len returns the number of header entries (not unique names).
func (h *HttpHeaders) Len() int {
	return len(h.entries)
}

// Status returns the :status pseudo-header as an int, or 0 if absent or
// unparseable - a convenience for the response-side of the pipeline.
func (h *HttpHeaders) Status() int {
	v := h.Get(":status")
	n := 0
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return 0
		}
		n = n*10 + int(v[i]-'0')
	}
	return n
}

// Clone returns a deep copy, used when a decorator needs to mutate
// headers without affecting a sibling consumer of the same HttpObject.
func (h *HttpHeaders) Clone() *HttpHeaders {
	c := &HttpHeaders{entries: make([]headerEntry, len(h.entries))}
	copy(c.entries, h.entries)
	return c
}
