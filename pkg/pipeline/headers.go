package pipeline

import "net/http"

// Header is a single response header entry.
type Header struct {
	Name  string
	Value string
}

// HeaderList is an append-only ordered sequence of headers.
// Duplicate names are kept, so several Set-Cookie entries can coexist.
type HeaderList struct {
	entries []Header
}

// Append adds headers to the end of the list.
func (l *HeaderList) Append(headers ...Header) {
	l.entries = append(l.entries, headers...)
}

// Len returns the number of entries.
func (l *HeaderList) Len() int {
	return len(l.entries)
}

// All returns a copy of the entries in accumulation order.
func (l *HeaderList) All() []Header {
	out := make([]Header, len(l.entries))
	copy(out, l.entries)
	return out
}

// ApplyTo adds every entry to h in accumulation order.
func (l *HeaderList) ApplyTo(h http.Header) {
	if l == nil {
		return
	}
	for _, e := range l.entries {
		h.Add(e.Name, e.Value)
	}
}
