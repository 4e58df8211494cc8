package xgoesi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

// blockedResponse returns a synthetic error response for a request
// which the rate limiter did not forward to ESI.
func blockedResponse(req *http.Request, statusCode int, message string) (*http.Response, error) {
	if statusCode < 400 {
		return nil, fmt.Errorf("blocked response: invalid status code %d", statusCode)
	}
	body, err := json.Marshal(struct {
		Error string `json:"error"`
	}{message})
	if err != nil {
		return nil, err
	}
	text := http.StatusText(statusCode)
	if statusCode == StatusTooManyErrors {
		text = "Too Many Errors"
	}
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("X-Origin-Server", "localhost")
	resp := &http.Response{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Header:        h,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Request:       req,
		Status:        fmt.Sprintf("%d %s", statusCode, text),
		StatusCode:    statusCode,
	}
	return resp, nil
}
