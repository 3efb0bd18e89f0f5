package smc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/smcgo/smc/shared/api"
	"github.com/smcgo/smc/shared/logger"
)

// ProtocolSMC represents a connection to a management server.
type ProtocolSMC struct {
	http            *http.Client
	httpBaseURL     url.URL
	httpUserAgent   string
	httpRetries     int
	apiVersion      string
	apiKey          string
	domain          string
	entryPoints     map[string]string
	entryPointsLock sync.Mutex
}

// errorResponse is the body the server sends along an error status.
type errorResponse struct {
	Message string   `json:"message"`
	Status  string   `json:"status"`
	Details []string `json:"details"`
}

// URL returns the address of the server.
func (r *ProtocolSMC) URL() string {
	return r.httpBaseURL.String()
}

// APIVersion returns the API version the connection talks.
func (r *ProtocolSMC) APIVersion() string {
	return r.apiVersion
}

// apiPath builds the path of a version scoped resource.
func (r *ProtocolSMC) apiPath(parts ...string) string {
	return "/" + strings.Join(append([]string{r.apiVersion}, parts...), "/")
}

// resolveHref turns an href into an absolute URL string.
func (r *ProtocolSMC) resolveHref(href string, params url.Values) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("Invalid href %q: %w", href, err)
	}

	if !u.IsAbs() {
		base := r.httpBaseURL
		u = base.ResolveReference(u)
	}

	if len(params) > 0 {
		values := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				values.Add(k, v)
			}
		}

		u.RawQuery = values.Encode()
	}

	return u.String(), nil
}

// Fetch sends a request to the server and maps the response.
func (r *ProtocolSMC) Fetch(ctx context.Context, req *Request) (*Result, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target, err := r.resolveHref(req.Href, req.Params)
	if err != nil {
		return nil, err
	}

	// Prepare the body
	var body io.Reader
	isJSON := false
	if req.Body != nil {
		reader, ok := req.Body.(io.Reader)
		if ok {
			body = reader
		} else {
			buf := bytes.Buffer{}
			err := json.NewEncoder(&buf).Encode(req.Body)
			if err != nil {
				return nil, err
			}

			body = &buf
			isJSON = true
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}

	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	if isJSON {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	if r.httpUserAgent != "" {
		httpReq.Header.Set("User-Agent", r.httpUserAgent)
	}

	if req.ETag != "" {
		httpReq.Header.Set("If-Match", req.ETag)
	}

	logger.Debug("Sending request to management server", logger.Ctx{"method": method, "url": target, "etag": req.ETag})

	// Send the request
	resp, err := r.http.Do(httpReq)
	if err != nil {
		return nil, err
	}

	defer func() { _ = resp.Body.Close() }()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseErrorResponse(resp.StatusCode, content)
	}

	result := &Result{
		StatusCode: resp.StatusCode,
		Href:       req.Href,
		ETag:       resp.Header.Get("ETag"),
		Header:     resp.Header,
	}

	location := resp.Header.Get("Location")
	if location != "" {
		result.Href = location
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		result.JSON = content
	} else {
		result.Content = content
	}

	return result, nil
}

// parseErrorResponse builds a StatusError out of an error response.
func parseErrorResponse(status int, content []byte) error {
	resp := errorResponse{}
	err := json.Unmarshal(content, &resp)
	if err != nil || resp.Message == "" {
		msg := strings.TrimSpace(string(content))
		if msg == "" {
			msg = http.StatusText(status)
		}

		return api.StatusErrorf(status, "%s", msg)
	}

	if len(resp.Details) > 0 {
		return api.StatusErrorf(status, "%s: %s", resp.Message, strings.Join(resp.Details, ", "))
	}

	return api.StatusErrorf(status, "%s", resp.Message)
}

// queryStruct sends a request and decodes the JSON response into target.
func (r *ProtocolSMC) queryStruct(ctx context.Context, method string, href string, data any, ETag string, target any) (string, error) {
	resp, err := r.Fetch(ctx, &Request{Method: method, Href: href, Body: data, ETag: ETag})
	if err != nil {
		return "", err
	}

	if target != nil {
		err = resp.Decode(target)
		if err != nil {
			return "", err
		}
	}

	return resp.ETag, nil
}
