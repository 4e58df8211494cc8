package xgoesi

import (
	"net/http"
	"strconv"
	"time"
)

const (
	headerErrorLimitRemain = "X-ESI-Error-Limit-Remain"
	headerErrorLimitReset  = "X-ESI-Error-Limit-Reset"
	headerRetryAfter       = "Retry-After"
)

// ParseErrorLimitResetHeader returns the time until the ESI error window resets
// and reports whether the header was present and valid.
func ParseErrorLimitResetHeader(resp *http.Response) (time.Duration, bool) {
	return secondsHeader(resp, headerErrorLimitReset)
}

// ParseRetryAfterHeader returns the duration of a Retry-After header given in seconds
// and reports whether the header was present and valid.
func ParseRetryAfterHeader(resp *http.Response) (time.Duration, bool) {
	return secondsHeader(resp, headerRetryAfter)
}

func parseErrorLimitRemainHeader(resp *http.Response) (int, bool) {
	v, ok := intHeader(resp, headerErrorLimitRemain)
	return int(v), ok
}

func secondsHeader(resp *http.Response, key string) (time.Duration, bool) {
	v, ok := intHeader(resp, key)
	if !ok {
		return 0, false
	}
	return time.Duration(v) * time.Second, true
}

// intHeader returns the non-negative integer value of a header.
func intHeader(resp *http.Response, key string) (int64, bool) {
	if resp == nil {
		return 0, false
	}
	s := resp.Header.Get(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
