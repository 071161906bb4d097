package domain

import "fmt"

// ObjectKind tags an HttpObject's variant.
type ObjectKind int

const (
	ObjectHeaders ObjectKind = iota
	ObjectData
	ObjectTrailers
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectHeaders:
		return "Headers"
	case ObjectData:
		return "Data"
	case ObjectTrailers:
		return "Trailers"
	default:
		return "Unknown"
	}
}

// HttpObject is the tagged variant {Headers, Data, Trailers} that a
// reactive stream (internal/adapter/stream) carries. Exactly one of
// Headers/Data/Trailers is non-nil, matching the Kind tag - an explicit
// sum type rather than a set of nullable references.
type HttpObject struct {
	Headers  *HttpHeaders
	Data     *HttpData
	Trailers *HttpHeaders
	Kind     ObjectKind
}

// NewHeadersObject wraps a headers block, e.g. the informational
// "100 Continue" object or the final response/request headers.
func NewHeadersObject(h *HttpHeaders) HttpObject {
	return HttpObject{Kind: ObjectHeaders, Headers: h}
}

// NewDataObject wraps a body chunk.
func NewDataObject(d *HttpData) HttpObject {
	return HttpObject{Kind: ObjectData, Data: d}
}

// NewTrailersObject wraps a terminal trailer block.
func NewTrailersObject(h *HttpHeaders) HttpObject {
	return HttpObject{Kind: ObjectTrailers, Trailers: h}
}

// Release frees any pooled buffer the object owns. Safe to call on
// Headers/Trailers objects (a no-op).
func (o HttpObject) Release() {
	if o.Kind == ObjectData && o.Data != nil {
		o.Data.Release()
	}
}

// IsInterim reports whether this Headers object is a "100 Continue"-style
// interim response (status in the 1xx range) rather than the final
// response headers.
func (o HttpObject) IsInterim() bool {
	if o.Kind != ObjectHeaders || o.Headers == nil {
		return false
	}
	status := o.Headers.Status()
	return status >= 100 && status < 200
}

// ObjectSequenceValidator enforces the legal stream shape:
//
//	Headers (Data*) Trailers? EOS
//
// with at most one terminal Trailers OR a trailing Data{eos}; never both.
// Any number of interim 1xx Headers objects (e.g. "100 Continue") may
// precede the final response Headers; none may follow it.
type ObjectSequenceValidator struct {
	sawHeaders   bool
	sawFinal     bool
	sawTrailers  bool
	sawDataEOS   bool
	sawTerminal  bool
}

// Validate folds the next object into the sequence, returning an error
// the instant the shape becomes illegal. Callers (codec decoders, test
// harnesses) should call this once per emitted object.
func (v *ObjectSequenceValidator) Validate(o HttpObject) error {
	if v.sawTerminal {
		return fmt.Errorf("httpobject: %s observed after stream terminal", o.Kind)
	}
	switch o.Kind {
	case ObjectHeaders:
		if !v.sawHeaders {
			v.sawHeaders = true
			if !o.IsInterim() {
				v.sawFinal = true
			}
			return nil
		}
		if o.IsInterim() {
			if v.sawFinal {
				return fmt.Errorf("httpobject: 100-continue headers after final response headers")
			}
			return nil
		}
		if v.sawFinal {
			return fmt.Errorf("httpobject: more than one final Headers object")
		}
		v.sawFinal = true
		return nil
	case ObjectData:
		if !v.sawFinal {
			return fmt.Errorf("httpobject: Data before final Headers")
		}
		if v.sawTrailers {
			return fmt.Errorf("httpobject: Data after Trailers")
		}
		if o.Data != nil && o.Data.EndOfStream() {
			v.sawDataEOS = true
			v.sawTerminal = true
		}
		return nil
	case ObjectTrailers:
		if !v.sawFinal {
			return fmt.Errorf("httpobject: Trailers before final Headers")
		}
		if v.sawDataEOS {
			return fmt.Errorf("httpobject: both terminal Data{eos} and Trailers present")
		}
		if v.sawTrailers {
			return fmt.Errorf("httpobject: more than one terminal Trailers object")
		}
		v.sawTrailers = true
		v.sawTerminal = true
		return nil
	default:
		return fmt.Errorf("httpobject: unknown kind %d", o.Kind)
	}
}
