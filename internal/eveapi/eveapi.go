// Package eveapi provides a client for the key based EVE Online API.
//
// Endpoints are named "group:Name", e.g. "account:APIKeyInfo" or "char:WalletJournal".
// Responses are returned as generic mappings for normalization by the caller.
package eveapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gohugoio/httpcache"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/xgoesi"
)

const (
	DefaultBaseURL = "https://api.eveonline.com"
	DefaultTimeout = 7000 * time.Millisecond
)

// Keys added to every payload next to the fields of the result.
const (
	KeyCachedUntil = "cachedUntil"
	KeyCurrentTime = "currentTime"
)

// Parameters for authenticating with an account key.
const (
	ParamKeyID            = "keyID"
	ParamVerificationCode = "vCode"
)

const rateLimitFallback = 60 * time.Second

// Client is a client for the EVE Online API.
type Client struct {
	baseURL   string
	client    *retryablehttp.Client
	limiter   *rate.Limiter
	timeout   time.Duration
	userAgent string
}

type Params struct {
	BaseURL string // uses DefaultBaseURL when empty
	// Cache for responses. No caching when nil.
	Cache httpcache.Cache
	// HTTPClient used for requests. Will use a pooled client when nil.
	HTTPClient *http.Client
	// Maximum number of retries for temporary failures. No retries when 0.
	MaxRetries int
	// Maximum average requests per second. No limit when 0.
	RequestsPerSecond float64
	// Timeout for a single fetch when the context has no deadline. Uses DefaultTimeout when 0.
	Timeout   time.Duration
	UserAgent string
}

// New returns a new client.
func New(arg Params) *Client {
	rhc := retryablehttp.NewClient()
	if arg.HTTPClient != nil {
		hc := *arg.HTTPClient
		rhc.HTTPClient = &hc
	}
	if arg.Cache != nil {
		rhc.HTTPClient.Transport = &httpcache.Transport{
			Cache:               arg.Cache,
			MarkCachedResponses: true,
			Transport:           rhc.HTTPClient.Transport,
		}
	}
	rhc.RetryMax = max(0, arg.MaxRetries)
	rhc.Logger = nil // requests are logged by logResponse with redacted URLs
	rhc.ResponseLogHook = logResponse
	rhc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c := &Client{
		baseURL:   strings.TrimSuffix(arg.BaseURL, "/"),
		client:    rhc,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		timeout:   arg.Timeout,
		userAgent: arg.UserAgent,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.timeout == 0 {
		c.timeout = DefaultTimeout
	}
	if arg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(arg.RequestsPerSecond), 1)
	}
	return c
}

// Timeout returns the timeout for a single fetch.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

type apiError struct {
	Code    int    `json:"code"`
	Content string `json:"content"`
}

type apiResponse struct {
	CachedUntil string         `json:"cachedUntil"`
	CurrentTime string         `json:"currentTime"`
	Error       *apiError      `json:"error"`
	Result      map[string]any `json:"result"`
}

// Fetch fetches the result of an endpoint.
//
// The returned mapping contains the fields of the result
// plus the keys [KeyCurrentTime] and [KeyCachedUntil] when reported by the API.
//
// The client timeout is applied only when ctx has no deadline.
//
// Failures are reported as [app.TransportError], [app.AuthError] or [app.RateLimitError].
func (c *Client) Fetch(ctx context.Context, endpoint string, params map[string]string) (map[string]any, error) {
	u, err := c.makeURL(endpoint, params)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &app.TransportError{Endpoint: endpoint, Err: err}
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if resp == nil {
		if err == nil {
			err = errors.New("no response")
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = redactURL(req.URL)
		}
		return nil, &app.TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == xgoesi.StatusTooManyErrors || resp.StatusCode == http.StatusTooManyRequests {
		retryAfter, ok := xgoesi.ParseRetryAfterHeader(resp)
		if !ok {
			retryAfter = rateLimitFallback
		}
		return nil, &app.RateLimitError{Endpoint: endpoint, RetryAfter: retryAfter}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &app.TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
	}
	var r apiResponse
	decodeErr := json.Unmarshal(body, &r)
	if decodeErr == nil && r.Error != nil {
		return nil, mapAPIError(endpoint, resp.StatusCode, r.Error)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &app.AuthError{Endpoint: endpoint, Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &app.TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	case decodeErr != nil:
		return nil, &app.TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	result := r.Result
	if result == nil {
		result = make(map[string]any)
	}
	if r.CurrentTime != "" {
		result[KeyCurrentTime] = r.CurrentTime
	}
	if r.CachedUntil != "" {
		result[KeyCachedUntil] = r.CachedUntil
	}
	slog.Debug("Fetched from EVE API", "endpoint", endpoint, "fromCache", resp.Header.Get(httpcache.XFromCache) != "")
	return result, nil
}

func (c *Client) makeURL(endpoint string, params map[string]string) (string, error) {
	group, name, found := strings.Cut(endpoint, ":")
	if !found || group == "" || name == "" {
		return "", fmt.Errorf("endpoint %q: %w", endpoint, app.ErrInvalid)
	}
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	u := fmt.Sprintf("%s/%s/%s.json.aspx", c.baseURL, url.PathEscape(group), url.PathEscape(name))
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u, nil
}

// mapAPIError maps an error reported by the API to an application error.
// Error codes 2xx are authentication errors, 1xx are invalid requests.
func mapAPIError(endpoint string, statusCode int, e *apiError) error {
	switch {
	case e.Code >= 100 && e.Code < 200:
		return fmt.Errorf("%s: %d: %s: %w", endpoint, e.Code, e.Content, app.ErrInvalid)
	case e.Code >= 200 && e.Code < 300:
		return &app.AuthError{Endpoint: endpoint, Code: e.Code, Message: e.Content}
	}
	return &app.TransportError{Endpoint: endpoint, StatusCode: statusCode, Err: fmt.Errorf("%d: %s", e.Code, e.Content)}
}
