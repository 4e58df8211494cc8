package xgoesi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// StatusTooManyErrors is the status code ESI returns when the error limit is exceeded.
const StatusTooManyErrors = 420

const (
	ErrorLimitResetFallback = 60 * time.Second
	retryAfterFallback      = 900 * time.Second
	minErrorsRemainDefault  = 5
)

// RateLimitGroup is a token bucket shared by a set of ESI operations.
// Each request consumes 2 tokens from MaxTokens per Window.
type RateLimitGroup struct {
	MaxTokens int
	Window    time.Duration
}

// interval returns the steady request interval for the group,
// with a 10% margin for server errors.
func (g RateLimitGroup) interval() time.Duration {
	d := g.Window / time.Duration(g.MaxTokens/2)
	return time.Duration(float64(d) * 1.1)
}

// DefaultRateLimitGroups are the ESI rate limit groups of the market endpoints.
var DefaultRateLimitGroups = map[string]RateLimitGroup{
	"market-history": {MaxTokens: 600, Window: 15 * time.Minute},
	"market-orders":  {MaxTokens: 3000, Window: 15 * time.Minute},
}

// DefaultOperations maps the ESI operations used by this module to their rate limit group.
// Operations with an empty group are only error limited.
var DefaultOperations = map[string]string{
	"GetMarketsGroupsMarketGroupId": "",
	"GetMarketsRegionIdHistory":     "market-history",
	"GetMarketsRegionIdOrders":      "market-orders",
	"GetUniverseTypesTypeId":        "",
}

// RateLimiter is a transport that enforces ESI rate limits and the ESI error limit.
//
// Clients must add the operation ID of each request with [NewContextWithOperationID].
// Authenticated requests must also carry the character through [NewContextWithAuth].
// Requests without an operation ID are only error limited.
//
// Requests of a rate limited operation are paced to the average rate of their group.
// Buckets are per group and character.
// After a 429 response all requests of that bucket are answered locally with a 429
// until the Retry-After period has passed.
//
// After a 420 response or when the remaining errors drop to MinErrorsRemain
// all requests are answered locally with a 420 until the error window resets.
//
// The zero value is ready to use. A RateLimiter is safe for concurrent use.
type RateLimiter struct {
	// Transport makes the actual requests. Defaults to [http.DefaultTransport].
	Transport http.RoundTripper

	// MinErrorsRemain is the error budget left in a window that triggers a block.
	MinErrorsRemain int

	// Groups and Operations override the defaults when set.
	Groups     map[string]RateLimitGroup
	Operations map[string]string

	// Now returns the current time. Defaults to [time.Now].
	Now func() time.Time

	mu            sync.Mutex
	errorsBlocked time.Time
	buckets       map[string]*bucket
}

type bucket struct {
	limiter      *rate.Limiter
	blockedUntil time.Time
}

var _ http.RoundTripper = (*RateLimiter)(nil)

func (rl *RateLimiter) RoundTrip(req *http.Request) (*http.Response, error) {
	logger := slog.With(
		slog.String("transport", "RateLimiter"),
		slog.String("method", req.Method),
		slog.Any("url", req.URL),
	)
	transport := rl.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	ctx := req.Context()

	if wait := rl.until(rl.errorBlockedUntil()); wait > 0 {
		resp, err := blockedResponse(req, StatusTooManyErrors, fmt.Sprintf("error limit timeout: %s", wait))
		if err != nil {
			return nil, err
		}
		resp.Header.Set(headerErrorLimitReset, strconv.Itoa(int(wait.Seconds()+1)))
		resp.Header.Set(headerErrorLimitRemain, "0")
		logger.Warn("Blocked request due to error limit timeout", "wait", wait)
		return resp, nil
	}

	name, group, err := rl.bucketFor(ctx)
	if err != nil {
		return nil, err
	}
	logger = logger.With(slog.String("rateLimitBucket", name))
	logger.Debug("Processing request")
	if name == "" {
		resp, err := transport.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		rl.updateErrorLimit(logger, resp)
		return resp, nil
	}

	b := rl.bucket(name, group)
	rl.mu.Lock()
	blockedUntil := b.blockedUntil
	rl.mu.Unlock()
	if wait := rl.until(blockedUntil); wait > 0 {
		m := fmt.Sprintf("rate limit timeout for bucket %s: %s", name, wait)
		resp, err := blockedResponse(req, http.StatusTooManyRequests, m)
		if err != nil {
			return nil, err
		}
		resp.Header.Set(headerRetryAfter, strconv.Itoa(int(wait.Seconds()+1)))
		logger.Warn("Blocked request due to rate limit timeout", "wait", wait)
		return resp, nil
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		timeout, ok := ParseRetryAfterHeader(resp)
		if !ok {
			logger.Warn("Failed to parse retry after header. Using fallback")
			timeout = retryAfterFallback
		}
		rl.mu.Lock()
		b.blockedUntil = rl.now().Add(timeout)
		rl.mu.Unlock()
		logger.Warn("Activated block for rate limit bucket", "timeout", timeout)
	}
	return resp, nil
}

// IsErrorLimited reports whether requests are currently blocked by the error limit.
func (rl *RateLimiter) IsErrorLimited() bool {
	return rl.until(rl.errorBlockedUntil()) > 0
}

func (rl *RateLimiter) now() time.Time {
	if rl.Now != nil {
		return rl.Now()
	}
	return time.Now()
}

func (rl *RateLimiter) until(t time.Time) time.Duration {
	return t.Sub(rl.now())
}

func (rl *RateLimiter) errorBlockedUntil() time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.errorsBlocked
}

// updateErrorLimit blocks all requests until the error window resets
// when a 420 was received or the error threshold is reached.
func (rl *RateLimiter) updateErrorLimit(logger *slog.Logger, resp *http.Response) {
	var reason string
	if resp.StatusCode == StatusTooManyErrors {
		reason = "420 received"
	} else {
		threshold := rl.MinErrorsRemain
		if threshold <= 0 || threshold >= 100 {
			threshold = minErrorsRemainDefault
		}
		remain, ok := parseErrorLimitRemainHeader(resp)
		if !ok || remain > threshold {
			return
		}
		reason = "threshold reached"
	}
	timeout, ok := ParseErrorLimitResetHeader(resp)
	if !ok {
		logger.Warn("Failed to parse error limit header. Using fallback")
		timeout = ErrorLimitResetFallback
	}
	rl.mu.Lock()
	rl.errorsBlocked = rl.now().Add(timeout)
	rl.mu.Unlock()
	logger.Warn("Activated block for ESI error limit", "reason", reason, "timeout", timeout)
}

// bucketFor returns the name and group of the rate limit bucket for a request.
// An empty name means the request is only error limited.
func (rl *RateLimiter) bucketFor(ctx context.Context) (string, RateLimitGroup, error) {
	operationID, ok := OperationIDFromContext(ctx)
	if !ok {
		return "", RateLimitGroup{}, nil
	}
	characterID, ok := characterIDFromContext(ctx)
	if ContextHasAccessToken(ctx) && !ok {
		return "", RateLimitGroup{}, fmt.Errorf("ratelimiter: %s: missing character ID for authed request", operationID)
	}
	operations := rl.Operations
	if operations == nil {
		operations = DefaultOperations
	}
	name, ok := operations[operationID]
	if !ok {
		return "", RateLimitGroup{}, fmt.Errorf("ratelimiter: %s: unknown operation", operationID)
	}
	if name == "" {
		return "", RateLimitGroup{}, nil
	}
	groups := rl.Groups
	if groups == nil {
		groups = DefaultRateLimitGroups
	}
	g, ok := groups[name]
	if !ok || g.MaxTokens < 2 || g.Window <= 0 {
		return "", RateLimitGroup{}, fmt.Errorf("ratelimiter: %s: invalid rate limit group %s", operationID, name)
	}
	return fmt.Sprintf("%s-%d", name, characterID), g, nil
}

func (rl *RateLimiter) bucket(name string, g RateLimitGroup) *bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.buckets == nil {
		rl.buckets = make(map[string]*bucket)
	}
	b, ok := rl.buckets[name]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(g.interval()), 1)}
		rl.buckets[name] = b
	}
	return b
}
