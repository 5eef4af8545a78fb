package zohoexpense

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/open-sspm/resolvers/internal/config"
	"github.com/open-sspm/resolvers/internal/connectors/registry"
	"github.com/open-sspm/resolvers/internal/connectors/zoho"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/logging"
	"github.com/open-sspm/resolvers/internal/resolver"
)

func newTestConnector(t *testing.T, env map[string]string, api http.HandlerFunc) (*Connector, *int32) {
	t.Helper()
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","expires_in":3600,"token_type":"Bearer"}`))
	})
	mux.HandleFunc("/expense/v1/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if got := r.Header.Get(organizationHeader); got != "org-1" {
			t.Errorf("%s = %q", organizationHeader, got)
		}
		if got := r.Header.Get("Authorization"); got != "Zoho-oauthtoken at" {
			t.Errorf("Authorization = %q", got)
		}
		api(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	merged := map[string]string{
		zoho.EnvClientID:     "cid",
		zoho.EnvClientSecret: "secret",
		zoho.EnvRefreshToken: "rt",
		zoho.EnvAccountsURL:  srv.URL,
		envOrganizationID:    "org-1",
		envAPIURL:            srv.URL + "/expense/v1",
	}
	for k, v := range env {
		merged[k] = v
	}
	return New(registry.Deps{Env: config.MapEnv(merged), Logger: logging.Discard()}), &calls
}

func TestCreateExpense(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/expense/v1/expenses" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["amount"] != 42.5 || body["category_id"] != "C1" || body["is_reimbursable"] != true {
			t.Errorf("body = %v", body)
		}
		_, _ = w.Write([]byte(`{"code":0,"message":"success","expenses":[{"expense_id":"E1","date":"2024-02-01","total":42.5,"currency_code":"USD","category_id":"C1"}]}`))
	})

	res := c.CreateExpense(context.Background(), instance.Attributes{
		"date":            "2024-02-01",
		"amount":          "42.50",
		"category_id":     "C1",
		"is_reimbursable": "true",
	})
	if res.IsError() {
		t.Fatalf("CreateExpense: %v", res.Error())
	}
	inst, _ := res.MustGet().Instance()
	if inst.ID() != "E1" || inst.Attributes["amount"] != 42.5 {
		t.Fatalf("instance = %+v", inst.Attributes)
	}
}

func TestValidation(t *testing.T) {
	t.Parallel()

	c, calls := newTestConnector(t, nil, func(http.ResponseWriter, *http.Request) {})
	ctx := context.Background()
	for name, res := range map[string]resolver.Result{
		"expense without category": c.CreateExpense(ctx, instance.Attributes{"date": "2024-01-01", "amount": 3}),
		"expense bad date":         c.CreateExpense(ctx, instance.Attributes{"date": "01/02/2024", "amount": 3, "category_id": "C"}),
		"expense bad amount":       c.CreateExpense(ctx, instance.Attributes{"date": "2024-01-01", "amount": "x", "category_id": "C"}),
		"report without name":      c.CreateReport(ctx, instance.Attributes{"description": "d"}),
		"report delete without id": c.DeleteReport(ctx, instance.Attributes{}),
	} {
		if !resolver.IsKind(res.Error(), resolver.KindValidation) {
			t.Fatalf("%s: error = %v, want validation", name, res.Error())
		}
	}
	if got := atomic.LoadInt32(calls); got != 0 {
		t.Fatalf("HTTP calls = %d, want 0", got)
	}
}

func TestMissingOrganizationIsConfigError(t *testing.T) {
	t.Parallel()

	c, calls := newTestConnector(t, map[string]string{envOrganizationID: ""}, func(http.ResponseWriter, *http.Request) {})
	res := c.QueryReport(context.Background(), instance.Attributes{})
	if !resolver.IsKind(res.Error(), resolver.KindConfig) || !strings.Contains(res.Error().Error(), envOrganizationID) {
		t.Fatalf("error = %v, want config error naming %s", res.Error(), envOrganizationID)
	}
	if got := atomic.LoadInt32(calls); got != 0 {
		t.Fatalf("HTTP calls = %d, want 0", got)
	}
}

func TestReportNotFound(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":1002,"message":"Report does not exist."}`))
	})
	res := c.QueryReport(context.Background(), instance.Attributes{"id": "R404"})
	if !resolver.HasCode(res.Error(), resolver.CodeNotFound) {
		t.Fatalf("error = %v, want NotFound", res.Error())
	}
}

func TestPollerSkipsSeenExpenses(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("per_page") != "100" {
			t.Errorf("per_page = %q", r.URL.Query().Get("per_page"))
		}
		_, _ = w.Write([]byte(`{"expenses":[{"expense_id":"1"},{"expense_id":"2"},{"expense_id":"3"}]}`))
	})
	var count int
	sub := instance.SubscriberFunc(func(context.Context, instance.Instance, bool) error {
		count++
		return nil
	})
	p := c.Pollers(sub)[0]
	for range 2 {
		if err := p.RunOnce(context.Background()); err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
	}
	if count != 3 {
		t.Fatalf("emitted = %d, want 3", count)
	}
}
