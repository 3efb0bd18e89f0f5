package smc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smcgo/smc/shared/api"
)

type fakeResponse struct {
	result *Result
	err    error
}

// fakeConn is a scripted Connection. Responses queued for a route are served
// in order, the last one being repeated.
type fakeConn struct {
	t *testing.T

	mu          sync.Mutex
	routes      map[string][]fakeResponse
	requests    []Request
	names       map[string]string
	entryPoints map[string]string
}

func newFakeConn(t *testing.T) *fakeConn {
	return &fakeConn{
		t:           t,
		routes:      map[string][]fakeResponse{},
		names:       map[string]string{},
		entryPoints: map[string]string{},
	}
}

func routeKey(method string, href string) string {
	if method == "" {
		method = http.MethodGet
	}

	return method + " " + href
}

func (f *fakeConn) on(method string, href string, responses ...fakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := routeKey(method, href)
	f.routes[key] = append(f.routes[key], responses...)
}

// Fetch implements Fetcher.
func (f *fakeConn) Fetch(ctx context.Context, req *Request) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, *req)

	key := routeKey(req.Method, req.Href)
	queue := f.routes[key]
	if len(queue) == 0 {
		return nil, api.StatusErrorf(http.StatusNotFound, "No route for %s", key)
	}

	next := queue[0]
	if len(queue) > 1 {
		f.routes[key] = queue[1:]
	}

	return next.result, next.err
}

// Resolve implements Resolver.
func (f *fakeConn) Resolve(ctx context.Context, name string, typeHint string) (string, error) {
	href, ok := f.names[name]
	if !ok {
		return "", api.StatusErrorf(http.StatusNotFound, "No results found for %q", name)
	}

	return href, nil
}

// EntryPoint implements Resolver.
func (f *fakeConn) EntryPoint(ctx context.Context, typ string) (string, error) {
	href, ok := f.entryPoints[typ]
	if !ok {
		return "", api.StatusErrorf(http.StatusNotFound, "Unsupported entry point %q", typ)
	}

	return href, nil
}

// calls returns how many requests hit a route.
func (f *fakeConn) calls(method string, href string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, req := range f.requests {
		if routeKey(req.Method, req.Href) == routeKey(method, href) {
			count++
		}
	}

	return count
}

// last returns the most recent request sent to a route.
func (f *fakeConn) last(method string, href string) Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.requests) - 1; i >= 0; i-- {
		if routeKey(f.requests[i].Method, f.requests[i].Href) == routeKey(method, href) {
			return f.requests[i]
		}
	}

	f.t.Fatalf("No request sent to %s", routeKey(method, href))
	return Request{}
}

// body returns the JSON body of the most recent request sent to a route.
func (f *fakeConn) body(method string, href string) map[string]any {
	req := f.last(method, href)

	content, err := json.Marshal(req.Body)
	require.NoError(f.t, err)

	doc := map[string]any{}
	require.NoError(f.t, json.Unmarshal(content, &doc))

	return doc
}

func reply(t *testing.T, doc any) fakeResponse {
	return replyTagged(t, "", doc)
}

func replyTagged(t *testing.T, etag string, doc any) fakeResponse {
	content, err := json.Marshal(doc)
	require.NoError(t, err)

	return fakeResponse{result: &Result{StatusCode: http.StatusOK, ETag: etag, JSON: content}}
}

func created(location string) fakeResponse {
	return fakeResponse{result: &Result{StatusCode: http.StatusCreated, Href: location}}
}

func accepted(t *testing.T, doc any) fakeResponse {
	r := reply(t, doc)
	r.result.StatusCode = http.StatusAccepted
	return r
}

func noContent() fakeResponse {
	return fakeResponse{result: &Result{StatusCode: http.StatusNoContent}}
}

func failure(status int, format string, args ...any) fakeResponse {
	return fakeResponse{err: api.StatusErrorf(status, format, args...)}
}

func transportFailure(message string) fakeResponse {
	return fakeResponse{err: fmt.Errorf("Connection reset: %s", message)}
}

// links builds the link list of a representation.
func links(rels ...string) []map[string]string {
	out := make([]map[string]string, 0, len(rels)/2)
	for i := 0; i+1 < len(rels); i += 2 {
		out = append(out, map[string]string{"rel": rels[i], "href": rels[i+1]})
	}

	return out
}
