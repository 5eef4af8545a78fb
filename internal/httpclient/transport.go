package httpclient

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/open-sspm/resolvers/internal/metrics"
)

// Transport is an http.RoundTripper for SDK clients (go-github, go-jira) that
// applies the connector's Authorizer and records the same logs and metrics as Client.
type Transport struct {
	Name   string
	Auth   Authorizer
	Base   http.RoundTripper
	Logger *slog.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	out := req.Clone(req.Context())
	if out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", userAgent)
	}
	if t.Auth != nil {
		if err := t.Auth.Apply(req.Context(), out); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := base.RoundTrip(out)
	elapsed := time.Since(start)
	metrics.HTTPRequestDuration.WithLabelValues(t.Name).Observe(elapsed.Seconds())
	if err != nil {
		metrics.HTTPRequestsTotal.WithLabelValues(t.Name, req.Method, "error").Inc()
		logger.Warn("vendor request failed",
			"connector", t.Name,
			"method", req.Method,
			"url", safeURL(req.URL.String()),
			"network_error", ClassifyNetworkError(err),
			"duration", elapsed,
			"err", err,
		)
		return nil, err
	}
	metrics.HTTPRequestsTotal.WithLabelValues(t.Name, req.Method, strconv.Itoa(resp.StatusCode)).Inc()
	logger.Debug("vendor request",
		"connector", t.Name,
		"method", req.Method,
		"url", safeURL(req.URL.String()),
		"status", resp.StatusCode,
		"duration", elapsed,
	)
	return resp, nil
}
