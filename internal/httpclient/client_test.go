package httpclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/open-sspm/resolvers/internal/logging"
	"github.com/open-sspm/resolvers/internal/resolver"
)

type countingAuth struct {
	applied     int32
	invalidated int32
}

func (a *countingAuth) Apply(_ context.Context, req *http.Request) error {
	n := atomic.AddInt32(&a.applied, 1)
	req.Header.Set("Authorization", "Bearer tok-"+string(rune('0'+n)))
	return nil
}

func (a *countingAuth) Invalidate() { atomic.AddInt32(&a.invalidated, 1) }

func TestDoSendsJSONAndHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/tickets" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if got := r.Header.Get("X-Api-Version"); got != "2" {
			t.Errorf("X-Api-Version = %q", got)
		}
		if r.URL.Query().Get("expand") != "all" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"subject":"hi"}` {
			t.Errorf("body = %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7}`))
	}))
	defer srv.Close()

	c := New(Options{Name: "test", BaseURL: srv.URL + "/v1/", Headers: http.Header{"X-Api-Version": {"2"}}, Logger: logging.Discard()})
	var out struct {
		ID int `json:"id"`
	}
	err := c.JSON(context.Background(), http.MethodPost, "/tickets", url.Values{"expand": {"all"}}, map[string]string{"subject": "hi"}, &out)
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if out.ID != 7 {
		t.Fatalf("id = %d, want 7", out.ID)
	}
}

func TestDoOmitsContentTypeWithoutBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "" {
			t.Errorf("Content-Type = %q, want empty", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(Options{Name: "test", BaseURL: srv.URL, Logger: logging.Discard()})
	if _, err := c.Do(context.Background(), Request{Method: http.MethodDelete, Path: "/x/1"}); err != nil {
		t.Fatalf("Do: %v", err)
	}
}

func TestDoSurfacesStatusAndBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"kaput"}`))
	}))
	defer srv.Close()

	c := New(Options{Name: "test", BaseURL: srv.URL, Logger: logging.Discard()})
	_, err := c.Do(context.Background(), Request{Path: "/boom"})
	if !resolver.IsKind(err, resolver.KindHTTPStatus) {
		t.Fatalf("err = %v, want http_status", err)
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "kaput") {
		t.Fatalf("err = %q, want status and body", err.Error())
	}
}

func TestDoDecodeErrorMapsVendorCode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"dup"}`))
	}))
	defer srv.Close()

	c := New(Options{
		Name:    "test",
		BaseURL: srv.URL,
		Logger:  logging.Discard(),
		DecodeError: func(status int, body []byte) *resolver.Error {
			if strings.Contains(string(body), "dup") {
				return resolver.Vendorf(resolver.CodeAlreadyExists, "duplicate")
			}
			return nil
		},
	})
	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/", JSON: map[string]any{}})
	if !resolver.HasCode(err, resolver.CodeAlreadyExists) {
		t.Fatalf("err = %v, want AlreadyExists", err)
	}
	if re := resolver.AsError(err); re.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", re.Status)
	}
}

func TestDoRetriesOnceOnUnauthorized(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	auth := &countingAuth{}
	c := New(Options{Name: "test", BaseURL: srv.URL, Auth: auth, RetryUnauthorized: true, Logger: logging.Discard()})
	if _, err := c.Do(context.Background(), Request{Path: "/me"}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 || atomic.LoadInt32(&auth.invalidated) != 1 {
		t.Fatalf("calls = %d invalidated = %d, want 2 and 1", calls, auth.invalidated)
	}
}

func TestDoDoesNotRetryUnauthorizedTwice(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Options{Name: "test", BaseURL: srv.URL, Auth: &countingAuth{}, RetryUnauthorized: true, Logger: logging.Discard()})
	_, err := c.Do(context.Background(), Request{Path: "/me"})
	if re := resolver.AsError(err); re == nil || re.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestDoRetriesRateLimit(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(Options{Name: "test", BaseURL: srv.URL, MaxRetries: 2, Logger: logging.Discard()})
	if _, err := c.Do(context.Background(), Request{Path: "/"}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestDoRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		size := 1024
		if r.URL.Path == "/big" {
			size = 1025
		}
		_, _ = w.Write([]byte(strings.Repeat("x", size)))
	}))
	defer srv.Close()

	c := New(Options{Name: "test", BaseURL: srv.URL, MaxBodySize: 1024, Logger: logging.Discard()})

	resp, err := c.Do(context.Background(), Request{Path: "/fits"})
	if err != nil {
		t.Fatalf("Do(/fits): %v", err)
	}
	if len(resp.Body) != 1024 {
		t.Fatalf("len(body) = %d, want 1024", len(resp.Body))
	}

	resp, err = c.Do(context.Background(), Request{Path: "/big"})
	if resp != nil {
		t.Fatalf("resp = %d bytes, want nil", len(resp.Body))
	}
	if !resolver.HasCode(err, resolver.CodeTooLarge) {
		t.Fatalf("err = %v, want %s", err, resolver.CodeTooLarge)
	}
	if !strings.Contains(err.Error(), "exceeds 1024 bytes") {
		t.Fatalf("err = %v, want size in message", err)
	}
}

func TestDoTimeoutIsNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(Options{Name: "test", BaseURL: srv.URL, Timeout: 20 * time.Millisecond, Logger: logging.Discard()})
	_, err := c.Do(context.Background(), Request{Path: "/slow"})
	if !resolver.IsKind(err, resolver.KindNetwork) {
		t.Fatalf("err = %v, want network", err)
	}
}

func TestClassifyNetworkError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{err: context.Canceled, want: "canceled"},
		{err: context.DeadlineExceeded, want: "timeout"},
		{err: &net.DNSError{Err: "no such host", Name: "x.invalid"}, want: "dns"},
		{err: errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), want: "connection_refused"},
		{err: errors.New("tls: handshake failure"), want: "tls"},
		{err: errors.New("weird"), want: "unknown"},
	}
	for _, tt := range tests {
		if got := ClassifyNetworkError(tt.err); got != tt.want {
			t.Fatalf("ClassifyNetworkError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestTransportAppliesAuth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "token abc" {
			t.Errorf("Authorization = %q", got)
		}
	}))
	defer srv.Close()

	hc := &http.Client{Transport: &Transport{Name: "test", Auth: Header("Authorization", "token abc"), Logger: logging.Discard()}}
	resp, err := hc.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
}
