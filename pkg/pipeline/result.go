package pipeline

// Result is the terminal outcome of a chain: the payload produced by the
// server handler (or passed to exit) together with the headers accumulated
// over the whole request.
type Result struct {
	Payload any

	headers *HeaderList
	exited  bool
}

// PushHeader appends a header to the request-wide header list. Middlewares
// typically call it on the Result returned by next to add headers after the
// rest of the chain has run.
func (r *Result) PushHeader(name, value string) {
	r.headers.Append(Header{Name: name, Value: value})
}

// Headers returns the accumulated headers in the order they were pushed.
func (r *Result) Headers() []Header {
	return r.headers.All()
}

// Exited reports whether the chain was short-circuited by exit.
func (r *Result) Exited() bool {
	return r.exited
}
