package smc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
)

// Request represents a single call against the management server.
type Request struct {
	// HTTP method, defaults to GET.
	Method string

	// Absolute href or path relative to the server address.
	Href string

	// Body is JSON encoded unless it is an io.Reader.
	Body any

	Params  url.Values
	Headers http.Header

	// Entity tag sent as If-Match on mutating requests.
	ETag string
}

// Result represents the outcome of a Request.
type Result struct {
	StatusCode int

	// Href of the affected resource. Set from the Location header on creation.
	Href string

	// Entity tag returned by the server, if any.
	ETag string

	// JSON holds the body for JSON responses, Content holds it for everything else.
	JSON    json.RawMessage
	Content []byte

	Header http.Header
}

// Decode unmarshals the JSON body of the result into target.
func (r *Result) Decode(target any) error {
	if r == nil || len(r.JSON) == 0 {
		return errors.New("Response has no JSON body")
	}

	return json.Unmarshal(r.JSON, target)
}

// Fetcher is the transport every resource goes through.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Result, error)
}

// Resolver turns names and element types into hrefs.
type Resolver interface {
	// Resolve returns the href of the element with the given name.
	// An empty typeHint searches all element types.
	Resolve(ctx context.Context, name string, typeHint string) (string, error)

	// EntryPoint returns the collection href for an element type.
	EntryPoint(ctx context.Context, typ string) (string, error)
}

// Connection is what resources need from the server connection.
type Connection interface {
	Fetcher
	Resolver
}

// get is a shorthand for a GET on href.
func get(ctx context.Context, f Fetcher, href string, params url.Values) (*Result, error) {
	return f.Fetch(ctx, &Request{Method: http.MethodGet, Href: href, Params: params})
}
