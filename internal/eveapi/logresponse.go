package eveapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/ErikKalkoken/evesync/internal/httptransport"
)

// maxLoggedBody is the maximum number of body bytes included in a log entry.
// Wallet payloads can have thousands of rows.
const maxLoggedBody = 4096

// Query parameters with secrets, which are redacted in logged URLs.
var redactedParams = []string{ParamVerificationCode}

// logResponse is a response hook for retryablehttp.
// HTTP errors are logged as warnings. All other responses are logged at DEBUG level only.
func logResponse(_ retryablehttp.Logger, r *http.Response) {
	ctx := context.Background()
	level := slog.LevelDebug
	if r.StatusCode >= 400 {
		level = slog.LevelWarn
	}
	if !slog.Default().Enabled(ctx, level) {
		return
	}
	attrs := []slog.Attr{
		slog.String("method", r.Request.Method),
		slog.String("url", redactURL(r.Request.URL)),
		slog.String("status", statusText(r)),
	}
	if level == slog.LevelDebug {
		attrs = append(attrs, slog.Any("header", r.Header))
	}
	body, err := bodyForLog(r)
	if err != nil {
		slog.Error("Failed to read response body for log", "error", err)
	} else {
		attrs = append(attrs, slog.Any("body", body))
	}
	slog.LogAttrs(ctx, level, "HTTP response", attrs...)
}

// bodyForLog returns the response body in a loggable form and preserves it for the caller.
// JSON bodies are decoded unless they are truncated.
func bodyForLog(r *http.Response) (any, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) > maxLoggedBody {
		return fmt.Sprintf("%s... (%d bytes)", data[:maxLoggedBody], len(data)), nil
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "application/json" {
		return string(data), nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data), nil
	}
	return v, nil
}

func statusText(r *http.Response) string {
	s := http.StatusText(r.StatusCode)
	if r.StatusCode == 420 {
		s = "Error Limited"
	}
	return fmt.Sprintf("%d %s", r.StatusCode, s)
}

// redactURL returns u as string with all secret query parameters redacted.
func redactURL(u *url.URL) string {
	return httptransport.RedactURL(u, redactedParams...)
}
