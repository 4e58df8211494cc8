// Package freshness decides whether cached data is stale enough to be fetched again.
package freshness

import "time"

const (
	DefaultMaxAge  = 1800 * time.Second
	DefaultTimeout = 7000 * time.Millisecond
)

// Policy holds the freshness settings for remote data.
// The zero value is not usable. Use [New] or [Default].
type Policy struct {
	MaxAge  time.Duration
	Timeout time.Duration

	// Now returns the current time. Can be replaced in tests.
	Now func() time.Time
}

// New returns a policy. Zero values are replaced by the defaults.
func New(maxAge, timeout time.Duration) Policy {
	p := Default()
	if maxAge > 0 {
		p.MaxAge = maxAge
	}
	if timeout > 0 {
		p.Timeout = timeout
	}
	return p
}

// Default returns a policy with the default settings.
func Default() Policy {
	return Policy{
		MaxAge:  DefaultMaxAge,
		Timeout: DefaultTimeout,
		Now:     time.Now,
	}
}

// NeedsRefetch reports whether data last updated at lastUpdatedAt must be fetched again.
// It returns false only when the data is complete and younger than maxAge.
// A zero maxAge means the policy's max age.
func (p Policy) NeedsRefetch(lastUpdatedAt time.Time, maxAge time.Duration, hasCompleteData bool) bool {
	if !hasCompleteData || lastUpdatedAt.IsZero() {
		return true
	}
	if maxAge == 0 {
		maxAge = p.MaxAge
	}
	return p.now().Sub(lastUpdatedAt) >= maxAge
}

// WithOverrides returns a copy of p with non-zero arguments replacing its settings.
func (p Policy) WithOverrides(maxAge, timeout time.Duration) Policy {
	if maxAge > 0 {
		p.MaxAge = maxAge
	}
	if timeout > 0 {
		p.Timeout = timeout
	}
	return p
}

func (p Policy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}
