// Package github talks to the GitHub REST API on behalf of breezy: listing,
// creating, updating and deleting releases, and listing merged pull requests
// for a branch. Pagination is handled here; retries are not.
package github

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"
)

// DefaultPerPage is the page size used for list endpoints (GitHub's maximum).
const DefaultPerPage = 100

// debugLogger is a function that logs debug messages when debug mode is enabled.
// By default, it's a no-op. Set it via SetDebugLogger to enable debug output.
var debugLogger func(format string, args ...any)

// SetDebugLogger configures the debug logger for API calls.
// Pass nil to disable debug logging.
func SetDebugLogger(logger func(format string, args ...any)) {
	debugLogger = logger
}

func logDebug(format string, args ...any) {
	if debugLogger != nil {
		debugLogger(format, args...)
	}
}

// TransportConfig tunes the HTTP client used for API calls.
type TransportConfig struct {
	// Timeout bounds a whole request including reading the body.
	// A context deadline can still override this.
	Timeout time.Duration

	DialTimeout     time.Duration
	KeepAlive       time.Duration
	TLSHandshake    time.Duration
	ResponseHeader  time.Duration
	IdleConnTimeout time.Duration

	MaxIdleConns        int
	MaxIdleConnsPerHost int
}

// DefaultTransportConfig returns conservative timeouts for api.github.com.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Timeout:             30 * time.Second,
		DialTimeout:         5 * time.Second,
		KeepAlive:           30 * time.Second,
		TLSHandshake:        5 * time.Second,
		ResponseHeader:      15 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
	}
}

// NewHTTPClient builds an *http.Client from cfg.
func NewHTTPClient(cfg TransportConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAlive,
	}

	tr := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		ForceAttemptHTTP2: true,

		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,

		TLSHandshakeTimeout:   cfg.TLSHandshake,
		ResponseHeaderTimeout: cfg.ResponseHeader,
	}

	return &http.Client{
		Transport: tr,
		Timeout:   cfg.Timeout,
	}
}

// loggingTransport reports every API round trip to the debug logger.
type loggingTransport struct {
	next http.RoundTripper
}

func (t loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		logDebug("[github] %s %s -> %v", req.Method, req.URL, err)
		return resp, err
	}
	logDebug("[github] %s %s -> %d (%s)", req.Method, req.URL, resp.StatusCode, time.Since(start).Round(time.Millisecond))
	return resp, nil
}

// Options configures a Client.
type Options struct {
	Token string
	Owner string
	Repo  string
	// BaseURL defaults to https://api.github.com. Enterprise servers take
	// their full API root, e.g. https://ghe.example.com/api/v3.
	BaseURL string
	// PerPage defaults to DefaultPerPage.
	PerPage int
	// HTTPClient defaults to NewHTTPClient(DefaultTransportConfig()).
	HTTPClient *http.Client
	// UserAgent defaults to "breezy".
	UserAgent string
}

// Client is a GitHub REST client scoped to one repository.
type Client struct {
	gh      *gh.Client
	owner   string
	repo    string
	perPage int
}

// NewClient validates opts and returns a Client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, fmt.Errorf("github token is required")
	}
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("repository owner and name are required")
	}

	base := opts.HTTPClient
	if base == nil {
		base = NewHTTPClient(DefaultTransportConfig())
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	httpClient := *base
	httpClient.Transport = loggingTransport{next: transport}

	client := gh.NewClient(&httpClient).WithAuthToken(opts.Token)
	client.UserAgent = opts.UserAgent
	if client.UserAgent == "" {
		client.UserAgent = "breezy"
	}
	if opts.BaseURL != "" {
		// Set directly: WithEnterpriseURLs appends /api/v3/ to any host
		// that is not an api.* host.
		baseURL, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid API URL %q: %w", opts.BaseURL, err)
		}
		client.BaseURL = baseURL
	}

	c := &Client{
		gh:      client,
		owner:   opts.Owner,
		repo:    opts.Repo,
		perPage: opts.PerPage,
	}
	if c.perPage <= 0 || c.perPage > DefaultPerPage {
		c.perPage = DefaultPerPage
	}
	return c, nil
}

// BaseURL returns the API root requests are sent to.
func (c *Client) BaseURL() string {
	return c.gh.BaseURL.String()
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("github %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// apiError converts go-github's response errors into an *APIError so callers
// only need to know about one type. Other errors are returned unchanged.
func apiError(err error) error {
	var resp *http.Response
	var message string

	var errResp *gh.ErrorResponse
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	switch {
	case errors.As(err, &errResp):
		resp, message = errResp.Response, errResp.Message
	case errors.As(err, &rateErr):
		resp, message = rateErr.Response, rateErr.Message
	case errors.As(err, &abuseErr):
		resp, message = abuseErr.Response, abuseErr.Message
	default:
		return err
	}
	if resp == nil {
		return err
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: message}
	if resp.Request != nil {
		apiErr.Method = resp.Request.Method
		apiErr.Path = resp.Request.URL.Path
	}
	return apiErr
}
