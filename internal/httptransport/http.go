// Package httptransport provides a logging http transport.
package httptransport

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// LoggedTransport adds request slog logging.
//
// Responses with status code below 400 are logged with INFO level.
// Responses with status code of 400 or higher are logged with WARNING level.
// When DEBUG logging is enabled, will also log details of request and response including headers.
// Authorization headers in requests are redacted.
type LoggedTransport struct {
	// Base is the underlying transport. Uses [http.DefaultTransport] when nil.
	Base http.RoundTripper
	// Response bodies of URLs containing one of these patterns are redacted, e.g. token endpoints.
	RedactedURLs []string
	// Values of these query parameters are redacted in all logged URLs, e.g. verification codes.
	RedactedParams []string
}

func (t LoggedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	isDebug := slog.Default().Enabled(req.Context(), slog.LevelDebug)
	if isDebug {
		t.logRequest(req)
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	t.logResponse(isDebug, resp, req)
	return resp, nil
}

func (t LoggedTransport) logRequest(req *http.Request) {
	var reqBody string
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err == nil {
			reqBody = string(body)
			req.Body = io.NopCloser(bytes.NewBuffer(body))
		}
	}
	h := req.Header.Clone()
	if h.Get("Authorization") != "" {
		h.Set("Authorization", "REDACTED") // never log this header
	}
	slog.Debug("HTTP request", "method", req.Method, "url", RedactURL(req.URL, t.RedactedParams...), "header", h, "body", reqBody)
}

func (t LoggedTransport) logResponse(isDebug bool, resp *http.Response, req *http.Request) {
	u := RedactURL(req.URL, t.RedactedParams...)
	if isDebug {
		var respBody string
		raw := req.URL.String()
		isRedacted := slices.ContainsFunc(t.RedactedURLs, func(x string) bool {
			return strings.Contains(raw, x)
		})
		if isRedacted {
			respBody = "REDACTED"
		} else if resp.Body != nil {
			body, err := io.ReadAll(resp.Body)
			if err == nil {
				respBody = string(body)
				resp.Body = io.NopCloser(bytes.NewBuffer(body))
			}
		}
		slog.Debug(
			"HTTP response",
			"method", req.Method,
			"url", u,
			"status", resp.StatusCode,
			"header", resp.Header,
			"body", respBody,
		)
	}
	var level slog.Level
	if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	} else {
		level = slog.LevelInfo
	}
	slog.Log(context.Background(), level, "HTTP response", "method", req.Method, "url", u, "status", resp.StatusCode)
}

// RedactURL returns u as string with the values of the given query parameters redacted.
func RedactURL(u *url.URL, params ...string) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	var changed bool
	for _, p := range params {
		if q.Has(p) {
			q.Set(p, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return u.String()
	}
	u2 := *u
	u2.RawQuery = q.Encode()
	return u2.String()
}
