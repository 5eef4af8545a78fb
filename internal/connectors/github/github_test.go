package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/open-sspm/resolvers/internal/config"
	"github.com/open-sspm/resolvers/internal/connectors/registry"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/logging"
	"github.com/open-sspm/resolvers/internal/resolver"
)

const issueJSON = `{"id":1,"node_id":"I_1","number":7,"title":"Broken build","body":"see logs","state":"open",
	"labels":[{"name":"bug"},{"name":"ci"}],"assignees":[{"login":"octo"}],"user":{"login":"ann"},"comments":2,
	"html_url":"https://github.com/acme/api/issues/7","created_at":"2024-01-02T03:04:05Z","updated_at":"2024-01-03T00:00:00Z"}`

func newTestConnector(t *testing.T, env map[string]string, handler http.HandlerFunc) (*Connector, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	merged := map[string]string{envAPIBase: srv.URL, envToken: "tok", envOwner: "acme", envRepos: "api"}
	for k, v := range env {
		merged[k] = v
	}
	return New(registry.Deps{Env: config.MapEnv(merged), Logger: logging.Discard()}), &calls
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	get := config.MapEnv(map[string]string{
		envOwner:   "acme",
		envRepos:   "api, other/web ,/bad/, ,x/y/z",
		envAPIBase: "https://ghe.example.com/api/v3/",
	}).Lookup(Kind)
	cfg := LoadConfig(get)
	want := []Repo{{Owner: "acme", Name: "api"}, {Owner: "other", Name: "web"}, {Owner: "acme", Name: "bad"}}
	if !reflect.DeepEqual(cfg.Repos, want) {
		t.Fatalf("Repos = %+v, want %+v", cfg.Repos, want)
	}
	if cfg.APIBase != "https://ghe.example.com/api/v3" {
		t.Fatalf("APIBase = %q", cfg.APIBase)
	}
	if _, ok := ParseRepo("api", ""); ok {
		t.Fatal("ParseRepo without owner succeeded")
	}
}

func TestCreateIssue(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/acme/api/issues" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["title"] != "Broken build" || len(body["labels"].([]any)) != 2 {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(issueJSON))
	})

	res := c.CreateIssue(context.Background(), instance.Attributes{"title": "Broken build", "body": "see logs", "labels": "bug,ci"})
	if res.IsError() {
		t.Fatalf("CreateIssue: %v", res.Error())
	}
	inst, _ := res.MustGet().Instance()
	want := instance.Attributes{
		"id":         "7",
		"ref":        "acme/api#7",
		"repo":       "acme/api",
		"node_id":    "I_1",
		"title":      "Broken build",
		"body":       "see logs",
		"state":      "open",
		"labels":     "bug,ci",
		"assignees":  "octo",
		"author":     "ann",
		"comments":   2,
		"html_url":   "https://github.com/acme/api/issues/7",
		"created_at": "2024-01-02T03:04:05Z",
		"updated_at": "2024-01-03T00:00:00Z",
		"closed_at":  "",
	}
	if !reflect.DeepEqual(inst.Attributes, want) {
		t.Fatalf("attributes = %#v, want %#v", inst.Attributes, want)
	}
}

func TestQueryIssueByRef(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, map[string]string{envRepos: "api,web"}, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/web/issues/7" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(issueJSON))
	})
	res := c.QueryIssue(context.Background(), instance.Attributes{"id": "acme/web#7"})
	if res.IsError() || res.MustGet().IsList() {
		t.Fatalf("result = %v", res.Error())
	}
	inst, _ := res.MustGet().Instance()
	if inst.Attributes["repo"] != "acme/web" {
		t.Fatalf("repo = %v", inst.Attributes["repo"])
	}
}

func TestValidationWithoutHTTP(t *testing.T) {
	t.Parallel()

	c, calls := newTestConnector(t, map[string]string{envRepos: "api,web"}, func(http.ResponseWriter, *http.Request) {})
	ctx := context.Background()
	for name, res := range map[string]resolver.Result{
		"ambiguous repo":    c.CreateIssue(ctx, instance.Attributes{"title": "t"}),
		"bad number":        c.QueryIssue(ctx, instance.Attributes{"id": "acme/api#x"}),
		"bad state":         c.UpdateIssue(ctx, instance.Attributes{"id": "acme/api#1", "state": "merged"}),
		"close without id":  c.CloseIssue(ctx, instance.Attributes{}),
		"create without ti": c.CreateIssue(ctx, instance.Attributes{"repo": "acme/api"}),
	} {
		if !resolver.IsKind(res.Error(), resolver.KindValidation) {
			t.Fatalf("%s: error = %v, want validation", name, res.Error())
		}
	}
	if got := atomic.LoadInt32(calls); got != 0 {
		t.Fatalf("HTTP calls = %d, want 0", got)
	}
}

func TestCloseIssueIsDelete(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, nil, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.Method != http.MethodPatch || body["state"] != "closed" {
			t.Errorf("request = %s %v", r.Method, body)
		}
		_, _ = w.Write([]byte(strings.Replace(issueJSON, `"state":"open"`, `"state":"closed"`, 1)))
	})
	res := c.CloseIssue(context.Background(), instance.Attributes{"id": "7"})
	if res.IsError() {
		t.Fatalf("CloseIssue: %v", res.Error())
	}
	inst, _ := res.MustGet().Instance()
	if inst.Attributes["deleted"] != true || inst.ID() != "7" {
		t.Fatalf("instance = %+v", inst.Attributes)
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, nil, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/api/issues/404":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"Validation Failed","errors":[{"resource":"Label","code":"already_exists","field":"name"}]}`))
		}
	})
	if res := c.QueryIssue(context.Background(), instance.Attributes{"id": "404"}); !resolver.HasCode(res.Error(), resolver.CodeNotFound) {
		t.Fatalf("404 error = %v", res.Error())
	}
	res := c.CreateIssue(context.Background(), instance.Attributes{"title": "t"})
	err := resolver.ErrorOf(res)
	if err == nil || err.Code != resolver.CodeAlreadyExists || err.Status != http.StatusUnprocessableEntity {
		t.Fatalf("422 error = %#v", err)
	}
}

func TestPollerSkipsFailingRepository(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, map[string]string{envRepos: "api,broken"}, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("per_page") != "100" {
			t.Errorf("per_page = %q", r.URL.Query().Get("per_page"))
		}
		if r.URL.Path == "/repos/acme/broken/issues" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message":"boom"}`))
			return
		}
		_, _ = w.Write([]byte(`[{"number":1},{"number":2},{"number":3,"pull_request":{"url":"x"}},{"number":4}]`))
	})

	var ids []string
	sub := instance.SubscriberFunc(func(_ context.Context, inst instance.Instance, _ bool) error {
		ids = append(ids, inst.Attributes.String("ref"))
		return nil
	})
	if err := c.Pollers(sub)[0].RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if got := strings.Join(ids, ","); got != "acme/api#1,acme/api#2,acme/api#4" {
		t.Fatalf("emitted = %s", got)
	}
}

func TestPollerFailsWhenEveryRepositoryFails(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	sub := instance.SubscriberFunc(func(context.Context, instance.Instance, bool) error { return nil })
	if err := c.Pollers(sub)[0].RunOnce(context.Background()); err == nil {
		t.Fatal("RunOnce succeeded, want error")
	}
}

func TestAppInstallationToken(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	keyPEM := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))

	var minted int32
	c, _ := newTestConnector(t, map[string]string{
		envToken:          "",
		envAppID:          "123",
		envAppPrivateKey:  keyPEM,
		envInstallationID: "42",
	}, func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if r.URL.Path == "/app/installations/42/access_tokens" {
			atomic.AddInt32(&minted, 1)
			if parts := strings.Split(strings.TrimPrefix(auth, "Bearer "), "."); len(parts) != 3 {
				t.Errorf("app jwt = %q", auth)
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"token":"ghs_1","expires_at":"2099-01-01T00:00:00Z"}`))
			return
		}
		if auth != "Bearer ghs_1" {
			t.Errorf("Authorization = %q", auth)
		}
		_, _ = w.Write([]byte(issueJSON))
	})

	for range 2 {
		if res := c.QueryIssue(context.Background(), instance.Attributes{"id": "7"}); res.IsError() {
			t.Fatalf("QueryIssue: %v", res.Error())
		}
	}
	if got := atomic.LoadInt32(&minted); got != 1 {
		t.Fatalf("installation tokens minted = %d, want 1", got)
	}
}

func TestMissingCredentials(t *testing.T) {
	t.Parallel()

	c, calls := newTestConnector(t, map[string]string{envToken: ""}, func(http.ResponseWriter, *http.Request) {})
	res := c.QueryRepository(context.Background(), instance.Attributes{"repo": "acme/api"})
	if !resolver.IsKind(res.Error(), resolver.KindConfig) || !strings.Contains(res.Error().Error(), envToken) {
		t.Fatalf("error = %v", res.Error())
	}
	if got := atomic.LoadInt32(calls); got != 0 {
		t.Fatalf("HTTP calls = %d, want 0", got)
	}
}
