package cms

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const defaultTimeout = 10 * time.Second

// loggingRoundTripper logs every outbound repository call. Access tokens
// are redacted from the logged URL.
type loggingRoundTripper struct {
	inner http.RoundTripper
}

func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := l.inner.RoundTrip(req)
	duration := time.Since(start)
	if err != nil {
		slog.Error("cms request failed",
			"method", req.Method,
			"url", redact(req.URL),
			"duration", duration.String(),
			"error", err,
		)
		return nil, err
	}
	slog.Debug("cms request",
		"method", req.Method,
		"url", redact(req.URL),
		"status", resp.StatusCode,
		"duration", duration.String(),
	)
	return resp, nil
}

func redact(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
		cp := *u
		cp.RawQuery = q.Encode()
		return cp.String()
	}
	return u.String()
}

// NewHTTPClient returns an http.Client with the default timeout and
// request logging.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &loggingRoundTripper{inner: http.DefaultTransport},
	}
}
