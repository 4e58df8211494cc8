package httptransport_test

import (
	"bytes"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/ErikKalkoken/evesync/internal/httptransport"
)

func TestLoggedTransport(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer func() {
		log.SetOutput(os.Stderr)
	}()
	t.Run("can log GET request with 200", func(t *testing.T) {
		// given
		myClient := &http.Client{
			Transport: httptransport.LoggedTransport{},
		}
		slog.SetLogLoggerLevel(slog.LevelInfo)
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://www.example.com/",
			httpmock.NewStringResponder(http.StatusOK, "Test"))
		// when
		r, err := myClient.Get("https://www.example.com/")
		if assert.NoError(t, err) {
			assert.Equal(t, http.StatusOK, r.StatusCode)
			assert.Contains(t, buf.String(), "INFO HTTP response method=GET url=https://www.example.com/ status=200")
		}
	})
	t.Run("can log POST request with 404", func(t *testing.T) {
		// given
		myClient := &http.Client{
			Transport: httptransport.LoggedTransport{},
		}
		slog.SetLogLoggerLevel(slog.LevelInfo)
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://www.example.com/",
			httpmock.NewStringResponder(http.StatusNotFound, "Test"))
		// when
		r, err := myClient.Get("https://www.example.com/")
		if assert.NoError(t, err) {
			assert.Equal(t, http.StatusNotFound, r.StatusCode)
			assert.Contains(t, buf.String(), "WARN HTTP response method=GET url=https://www.example.com/ status=404")
		}
	})
	t.Run("can log request and response details when level is DEBUG", func(t *testing.T) {
		// given
		myClient := &http.Client{
			Transport: httptransport.LoggedTransport{},
		}
		slog.SetLogLoggerLevel(slog.LevelDebug)
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://www.example.com/",
			httpmock.NewStringResponder(http.StatusOK, "Test").HeaderSet(http.Header{"dummy": []string{"bravo"}}))
		req, err := http.NewRequest("GET", "https://www.example.com/", nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("dummy", "alpha")
		// when
		r, err := myClient.Do(req)
		if assert.NoError(t, err) {
			assert.Equal(t, http.StatusOK, r.StatusCode)
			assert.Contains(t, buf.String(), "INFO HTTP response method=GET url=https://www.example.com/ status=200")
			assert.Contains(t, buf.String(), "DEBUG HTTP request method=GET url=https://www.example.com/ header=map[Dummy:[alpha]] body=")
			assert.Contains(t, buf.String(), "DEBUG HTTP response method=GET url=https://www.example.com/ status=200 header=map[Dummy:[bravo]] body=Test")
		}
	})
	t.Run("should never log authorization headers in request", func(t *testing.T) {
		// given
		myClient := &http.Client{
			Transport: httptransport.LoggedTransport{},
		}
		slog.SetLogLoggerLevel(slog.LevelDebug)
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://www.example.com/",
			httpmock.NewStringResponder(http.StatusOK, "Test"))
		req, err := http.NewRequest("GET", "https://www.example.com/", nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "token")
		req.Header.Set("Dummy", "alpha")
		// when
		r, err := myClient.Do(req)
		if assert.NoError(t, err) {
			assert.Equal(t, http.StatusOK, r.StatusCode)
			assert.Contains(t, buf.String(), "DEBUG HTTP request method=GET url=https://www.example.com/ header=\"map[Authorization:[REDACTED] Dummy:[alpha]]\" body=")
		}
	})
	t.Run("should use base transport when given", func(t *testing.T) {
		// given
		base := httpmock.NewMockTransport()
		base.RegisterResponder(
			"GET",
			"https://www.example.com/",
			httpmock.NewStringResponder(http.StatusTeapot, "Test"))
		myClient := &http.Client{
			Transport: httptransport.LoggedTransport{Base: base},
		}
		slog.SetLogLoggerLevel(slog.LevelInfo)
		// when
		r, err := myClient.Get("https://www.example.com/")
		// then
		if assert.NoError(t, err) {
			assert.Equal(t, http.StatusTeapot, r.StatusCode)
			assert.Equal(t, 1, base.GetTotalCallCount())
		}
	})
	t.Run("can redact response bodies for blocked URLs", func(t *testing.T) {
		// given
		myClient := &http.Client{
			Transport: httptransport.LoggedTransport{
				RedactedURLs: []string{"https://www.example.com/"},
			},
		}
		slog.SetLogLoggerLevel(slog.LevelDebug)
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://www.example.com/",
			httpmock.NewStringResponder(http.StatusOK, "Test"))
		req, err := http.NewRequest("GET", "https://www.example.com/", nil)
		if err != nil {
			t.Fatal(err)
		}
		// when
		r, err := myClient.Do(req)
		if assert.NoError(t, err) {
			assert.Equal(t, http.StatusOK, r.StatusCode)
			assert.Contains(t, buf.String(), "DEBUG HTTP response method=GET url=https://www.example.com/ status=200 header=map[] body=REDACTED")
		}
	})
	t.Run("should redact query parameters in logged URLs", func(t *testing.T) {
		// given
		myClient := &http.Client{
			Transport: httptransport.LoggedTransport{
				RedactedParams: []string{"vCode"},
			},
		}
		slog.SetLogLoggerLevel(slog.LevelDebug)
		buf.Reset()
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://www.example.com/",
			httpmock.NewStringResponder(http.StatusForbidden, "Test"))
		// when
		r, err := myClient.Get("https://www.example.com/?keyID=1&vCode=secret")
		// then
		if assert.NoError(t, err) {
			assert.Equal(t, http.StatusForbidden, r.StatusCode)
			assert.NotContains(t, buf.String(), "secret")
			assert.Contains(t, buf.String(), "WARN HTTP response method=GET url=\"https://www.example.com/?keyID=1&vCode=REDACTED\" status=403")
		}
	})
}

func TestRedactURL(t *testing.T) {
	t.Run("should redact given parameters", func(t *testing.T) {
		u, _ := url.Parse("https://www.example.com/?keyID=1&vCode=secret")
		assert.Equal(t, "https://www.example.com/?keyID=1&vCode=REDACTED", httptransport.RedactURL(u, "vCode"))
	})
	t.Run("should return URL unchanged when parameter is absent", func(t *testing.T) {
		u, _ := url.Parse("https://www.example.com/?a=1")
		assert.Equal(t, "https://www.example.com/?a=1", httptransport.RedactURL(u, "vCode"))
	})
	t.Run("should return empty string for nil", func(t *testing.T) {
		assert.Equal(t, "", httptransport.RedactURL(nil, "vCode"))
	})
}
