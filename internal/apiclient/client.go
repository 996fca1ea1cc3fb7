// Package apiclient is the single configured HTTP client shared by all
// remote collaborators (authentication, detection persistence, tabular
// inference). It propagates the session cookie automatically via a cookie
// jar, converts every failure into a typed Result instead of raising it
// across package boundaries, and carries a response interceptor that
// reacts globally to authorization failures.
package apiclient

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/renalscan/renalscan-go/internal/errors"
	"github.com/renalscan/renalscan-go/internal/logging"
	"github.com/renalscan/renalscan-go/internal/observability"
)

const (
	// DefaultTimeout is applied when a request context has no deadline.
	DefaultTimeout = 30 * time.Second

	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second

	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultResponseHeaderTimeout = 10 * time.Second
	defaultDialTimeout           = 30 * time.Second
	defaultDialKeepAlive         = 30 * time.Second

	defaultUserAgent = "RenalScan-Go"

	// maxResponseBody caps collaborator response reads. Detection lists
	// carry base64 scan payloads, so the cap is generous.
	maxResponseBody = 64 << 20
)

// Config holds configuration for creating the API client.
type Config struct {
	// AuthBaseURL is the authentication collaborator base URL.
	AuthBaseURL string
	// DetectionBaseURL is the detection persistence collaborator base URL.
	DetectionBaseURL string
	// InferenceBaseURL is the tabular inference collaborator base URL.
	InferenceBaseURL string

	// DefaultTimeout is the timeout applied if request context has no deadline.
	DefaultTimeout time.Duration
	// UserAgent is added to all requests.
	UserAgent string
}

// Client is the shared collaborator HTTP client. Thread-safe.
type Client struct {
	httpClient *http.Client
	jar        *swappableJar
	cfg        Config

	mu             sync.RWMutex
	onUnauthorized func() // invoked by the 401 interceptor, may be nil

	metrics *observability.Metrics // optional
	log     *slog.Logger
}

// swappableJar is the client's cookie jar. It delegates to an inner jar
// behind its own lock so ClearCredentials can swap the jar while other
// goroutines have requests in flight, without writing the Jar field of
// the http.Client they are using.
type swappableJar struct {
	mu    sync.RWMutex
	inner http.CookieJar
}

func (j *swappableJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	inner := j.inner
	j.mu.RUnlock()
	inner.SetCookies(u, cookies)
}

func (j *swappableJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	inner := j.inner
	j.mu.RUnlock()
	return inner.Cookies(u)
}

func (j *swappableJar) swap(inner http.CookieJar) {
	j.mu.Lock()
	j.inner = inner
	j.mu.Unlock()
}

// New creates the API client with a fresh cookie jar so the remote session
// cookie set at login is forwarded on every subsequent request.
func New(cfg *Config, metrics *observability.Metrics) (*Client, error) {
	if cfg == nil {
		return nil, errors.Newf("apiclient config is required").
			Component("apiclient").
			Category(errors.CategoryConfiguration).
			Build()
	}
	c := *cfg
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}

	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.New(err).
			Component("apiclient").
			Category(errors.CategoryConfiguration).
			Build()
	}
	jar := &swappableJar{inner: inner}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: defaultDialKeepAlive,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
	}

	return &Client{
		httpClient: &http.Client{Transport: transport, Jar: jar},
		jar:        jar,
		cfg:        c,
		metrics:    metrics,
		log:        logging.ForService("apiclient"),
	}, nil
}

// SetUnauthorizedHandler registers the callback invoked when a collaborator
// answers 401 outside the session lifecycle endpoints. The handler is the
// last-resort safety net for stale sessions discovered mid-session; the
// session store's own failure paths cover the bootstrap and login cases.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

// ClearCredentials discards the stored cookies, dropping any remote
// session cookie. Called on logout regardless of the remote call's
// outcome. Safe to call while requests are in flight: the http.Client's
// Jar field is never rewritten, only the jar behind it.
func (c *Client) ClearCredentials() {
	inner, err := cookiejar.New(nil)
	if err != nil {
		// cookiejar.New only fails on invalid options; nil options cannot.
		c.log.Error("resetting cookie jar", "error", err)
		return
	}
	c.jar.swap(inner)
}

// HTTPClient exposes the underlying HTTP client so tests can install a
// mock transport.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// endpoint labels for metrics and interceptor exemption.
const (
	epLogin          = "auth.login"
	epSignup         = "auth.signup"
	epCurrentUser    = "auth.me"
	epLogout         = "auth.logout"
	epUpdateProfile  = "auth.update_profile"
	epUpdatePassword = "auth.update_password"
	epResetPassword  = "auth.reset_password"
	epUpload         = "detection.upload"
	epList           = "detection.list"
	epSave           = "detection.save"
	epPredict        = "inference.predict"
)

// lifecycleEndpoints are exempt from the 401 interceptor: their callers
// (the session store) already handle authorization failures themselves.
var lifecycleEndpoints = map[string]struct{}{
	epLogin:         {},
	epSignup:        {},
	epCurrentUser:   {},
	epLogout:        {},
	epResetPassword: {},
}

// do executes one collaborator request and returns status code and body.
// A transport-level failure returns a non-nil error; HTTP-level failures
// are left to the caller so the richest remote message can be surfaced.
func (c *Client) do(ctx context.Context, endpoint, method, url string, body []byte, contentType string) (int, []byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.DefaultTimeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, errors.New(err).
			Component("apiclient").
			Category(errors.CategoryHTTP).
			Context("endpoint", endpoint).
			Build()
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.observe(endpoint, start, err == nil)
	if err != nil {
		c.log.Warn("collaborator request failed",
			"endpoint", endpoint, "error", err)
		return 0, nil, errors.New(err).
			Component("apiclient").
			Category(errors.CategoryNetwork).
			Context("endpoint", endpoint).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, nil, errors.New(err).
			Component("apiclient").
			Category(errors.CategoryNetwork).
			Context("endpoint", endpoint).
			Build()
	}

	c.intercept(endpoint, resp.StatusCode)
	return resp.StatusCode, data, nil
}

// intercept implements the global authorization-failure safety net.
func (c *Client) intercept(endpoint string, status int) {
	if status != http.StatusUnauthorized {
		return
	}
	if _, exempt := lifecycleEndpoints[endpoint]; exempt {
		return
	}
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn == nil {
		return
	}
	c.log.Info("authorization failure intercepted, forcing logout",
		"endpoint", endpoint)
	fn()
}

func (c *Client) observe(endpoint string, start time.Time, ok bool) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	c.metrics.APIRequests.WithLabelValues(endpoint, outcome).Inc()
	c.metrics.APIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
