package smc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fvbommel/sortorder"

	"github.com/smcgo/smc/shared/api"
	"github.com/smcgo/smc/shared/logger"
	localtls "github.com/smcgo/smc/shared/tls"
)

// DefaultLoginRetries is the number of extra login attempts on transient failures.
const DefaultLoginRetries = 3

// ConnectionArgs represents a set of common connection properties.
type ConnectionArgs struct {
	// API key used to open the session.
	APIKey string

	// API version to talk. If not specified, the most recent one offered by the server is used.
	APIVersion string

	// Administrative domain to log into.
	Domain string

	// TLS CA to validate against. If not specified, the system CA is used.
	TLSCA string

	// Server certificate to trust, PEM encoded, for self-signed servers.
	TLSServerCert string

	// Controls whether a client verifies the server's certificate chain and host name.
	InsecureSkipVerify bool

	// User agent string
	UserAgent string

	// Custom proxy
	Proxy func(*http.Request) (*url.URL, error)

	// Custom HTTP Client (used as base for the connection)
	HTTPClient *http.Client

	// Cookie jar holding the session cookie
	CookieJar http.CookieJar

	// Per request timeout
	Timeout time.Duration

	// Extra login attempts on transient failures, defaults to DefaultLoginRetries.
	// A negative value disables retries.
	LoginRetries int
}

// Connect logs into a management server.
func Connect(url string, args *ConnectionArgs) (*ProtocolSMC, error) {
	return ConnectWithContext(context.Background(), url, args)
}

// ConnectWithContext logs into a management server with context.Context.
func ConnectWithContext(ctx context.Context, rawURL string, args *ConnectionArgs) (*ProtocolSMC, error) {
	// Use empty args if not specified
	if args == nil {
		args = &ConnectionArgs{}
	}

	if args.APIKey == "" {
		return nil, errors.New("An API key is required to connect")
	}

	// Cleanup URL
	rawURL = strings.TrimSuffix(rawURL, "/")

	logger.Debug("Connecting to a management server", logger.Ctx{"url": rawURL})

	httpBaseURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	httpClient, err := tlsHTTPClient(args.HTTPClient, args.TLSCA, args.TLSServerCert, args.InsecureSkipVerify, args.Proxy)
	if err != nil {
		return nil, err
	}

	if args.Timeout > 0 {
		httpClient.Timeout = args.Timeout
	}

	if args.CookieJar != nil {
		httpClient.Jar = args.CookieJar
	} else if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}

		httpClient.Jar = jar
	}

	retries := args.LoginRetries
	if retries == 0 {
		retries = DefaultLoginRetries
	} else if retries < 0 {
		retries = 0
	}

	// Initialize the client struct
	server := &ProtocolSMC{
		http:          httpClient,
		httpBaseURL:   *httpBaseURL,
		httpUserAgent: args.UserAgent,
		httpRetries:   retries,
		apiVersion:    args.APIVersion,
		apiKey:        args.APIKey,
		domain:        args.Domain,
	}

	if server.apiVersion == "" {
		server.apiVersion, err = server.latestAPIVersion(ctx)
		if err != nil {
			return nil, err
		}
	}

	err = server.login(ctx)
	if err != nil {
		return nil, err
	}

	err = server.loadEntryPoints(ctx)
	if err != nil {
		return nil, err
	}

	return server, nil
}

// tlsHTTPClient creates an HTTP client trusting the provided CA or server certificate.
func tlsHTTPClient(client *http.Client, tlsCA string, tlsServerCert string, insecureSkipVerify bool, proxyFunc func(req *http.Request) (*url.URL, error)) (*http.Client, error) {
	tlsConfig, err := localtls.GetTLSConfigMem(tlsCA, tlsServerCert, insecureSkipVerify)
	if err != nil {
		return nil, err
	}

	// Define the http transport
	transport := &http.Transport{
		TLSClientConfig:       tlsConfig,
		DialContext:           localtls.RFC3493Dialer,
		Proxy:                 http.ProxyFromEnvironment,
		ExpectContinueTimeout: time.Second * 30,
		ResponseHeaderTimeout: time.Second * 3600,
		TLSHandshakeTimeout:   time.Second * 5,
	}

	// Allow overriding the proxy
	if proxyFunc != nil {
		transport.Proxy = proxyFunc
	}

	// Define the http client
	if client == nil {
		client = &http.Client{}
	}

	if client.Transport == nil {
		client.Transport = transport
	}

	// Setup redirect policy
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		// Replicate the headers
		req.Header = via[len(via)-1].Header

		return nil
	}

	return client, nil
}

// latestAPIVersion picks the most recent API version advertised by the server.
func (r *ProtocolSMC) latestAPIVersion(ctx context.Context) (string, error) {
	versions := struct {
		Version []api.Link `json:"version"`
	}{}

	_, err := r.queryStruct(ctx, http.MethodGet, "/api", nil, "", &versions)
	if err != nil {
		return "", fmt.Errorf("Failed getting the API versions: %w", err)
	}

	if len(versions.Version) == 0 {
		return "", errors.New("Server didn't advertise any API version")
	}

	names := make([]string, 0, len(versions.Version))
	for _, v := range versions.Version {
		names = append(names, v.Rel)
	}

	sort.Sort(sortorder.Natural(names))

	return names[len(names)-1], nil
}

// login opens the API session, retrying on transient failures.
func (r *ProtocolSMC) login(ctx context.Context) error {
	req := api.LoginPost{
		AuthenticationKey: r.apiKey,
		Domain:            r.domain,
	}

	attempts := 0
	op := func() error {
		attempts++

		_, err := r.Fetch(ctx, &Request{Method: http.MethodPost, Href: r.apiPath("login"), Body: req})
		if err == nil {
			return nil
		}

		// Client errors, wrong keys included, won't get better by retrying.
		status, ok := api.StatusErrorMatch(err)
		if ok && status < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}

		if localtls.IsConnectionError(err) {
			logger.Warn("Management server unreachable", logger.Ctx{"attempt": attempts, "url": r.httpBaseURL.String()})
		} else {
			logger.Warn("Login attempt failed", logger.Ctx{"attempt": attempts, "err": err})
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(r.httpRetries)), ctx)
	err := backoff.Retry(op, policy)
	if err != nil {
		return fmt.Errorf("Failed logging into %q: %w", r.httpBaseURL.String(), err)
	}

	logger.Info("Logged into management server", logger.Ctx{"url": r.httpBaseURL.String(), "version": r.apiVersion})
	return nil
}

// loadEntryPoints caches the entry point links of the API root.
func (r *ProtocolSMC) loadEntryPoints(ctx context.Context) error {
	list := api.EntryPointList{}
	_, err := r.queryStruct(ctx, http.MethodGet, r.apiPath("api"), nil, "", &list)
	if err != nil {
		return fmt.Errorf("Failed getting the API entry points: %w", err)
	}

	entries := make(map[string]string, len(list.Entries))
	for _, link := range list.Entries {
		entries[link.Rel] = link.Href
	}

	r.entryPointsLock.Lock()
	r.entryPoints = entries
	r.entryPointsLock.Unlock()

	return nil
}

// Logout closes the API session.
func (r *ProtocolSMC) Logout(ctx context.Context) error {
	_, err := r.Fetch(ctx, &Request{Method: http.MethodPut, Href: r.apiPath("logout")})
	if err != nil {
		return fmt.Errorf("Failed logging out: %w", err)
	}

	return nil
}

// EntryPoints returns the names of all known entry points, sorted.
func (r *ProtocolSMC) EntryPoints() []string {
	r.entryPointsLock.Lock()
	defer r.entryPointsLock.Unlock()

	names := make([]string, 0, len(r.entryPoints))
	for name := range r.entryPoints {
		names = append(names, name)
	}

	sort.Sort(sortorder.Natural(names))

	return names
}

// EntryPoint returns the collection href for an element type.
func (r *ProtocolSMC) EntryPoint(ctx context.Context, typ string) (string, error) {
	r.entryPointsLock.Lock()
	href, ok := r.entryPoints[typ]
	r.entryPointsLock.Unlock()

	if !ok {
		return "", api.StatusErrorf(http.StatusNotFound, "Unsupported entry point %q", typ)
	}

	return href, nil
}
