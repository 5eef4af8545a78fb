package zohocrm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/open-sspm/resolvers/internal/config"
	"github.com/open-sspm/resolvers/internal/connectors/registry"
	"github.com/open-sspm/resolvers/internal/connectors/zoho"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/logging"
	"github.com/open-sspm/resolvers/internal/resolver"
)

type fakeZoho struct {
	tokens int32
	api    int32
}

func newTestConnector(t *testing.T, api http.HandlerFunc) (*Connector, *fakeZoho) {
	t.Helper()
	fake := &fakeZoho{}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fake.tokens, 1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("refresh_token") != "rt" || r.PostForm.Get("client_id") != "cid" {
			t.Errorf("token form = %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","expires_in":3600,"token_type":"Bearer","api_domain":"https://www.zohoapis.com"}`))
	})
	mux.HandleFunc("/crm/v2/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fake.api, 1)
		if got := r.Header.Get("Authorization"); got != zoho.TokenType+" at" {
			t.Errorf("Authorization = %q", got)
		}
		api(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	env := config.MapEnv(map[string]string{
		zoho.EnvClientID:     "cid",
		zoho.EnvClientSecret: "secret",
		zoho.EnvRefreshToken: "rt",
		zoho.EnvAccountsURL:  srv.URL,
		envAPIURL:            srv.URL + "/crm/v2",
	})
	return New(registry.Deps{Env: env, Logger: logging.Discard()}), fake
}

func invoke(t *testing.T, c *Connector, entity, verb string, attrs instance.Attributes) resolver.Result {
	t.Helper()
	h, ok := c.Handlers().Find(entity, verb)
	if !ok {
		t.Fatalf("no %s handler for %s", verb, entity)
	}
	return h.Run(context.Background(), attrs)
}

func TestCreateLeadReadsBack(t *testing.T) {
	t.Parallel()

	c, fake := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/crm/v2/Leads":
			var body struct {
				Data []map[string]any `json:"data"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if len(body.Data) != 1 || body.Data[0]["Last_Name"] != "Doe" || body.Data[0]["Company"] != "Acme" {
				t.Errorf("body = %v", body)
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":[{"code":"SUCCESS","details":{"id":"L1"},"message":"record added","status":"success"}]}`))
		case r.Method == http.MethodGet && r.URL.Path == "/crm/v2/Leads/L1":
			_, _ = w.Write([]byte(`{"data":[{"id":"L1","Last_Name":"Doe","Company":"Acme","Email":"d@example.com","Owner":{"id":"9","name":"Ann"}}]}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	res := invoke(t, c, "lead", resolver.VerbCreate, instance.Attributes{"last_name": "Doe", "company": "Acme", "email": "d@example.com"})
	if res.IsError() {
		t.Fatalf("create lead: %v", res.Error())
	}
	inst, _ := res.MustGet().Instance()
	if inst.ID() != "L1" || inst.Attributes["owner_name"] != "Ann" || inst.Attributes["email"] != "d@example.com" {
		t.Fatalf("instance = %+v", inst.Attributes)
	}
	if got := atomic.LoadInt32(&fake.tokens); got != 1 {
		t.Fatalf("token requests = %d, want 1", got)
	}
}

func TestDuplicateDataIsAlreadyExists(t *testing.T) {
	t.Parallel()

	for name, status := range map[string]int{"accepted": http.StatusAccepted, "bad request": http.StatusBadRequest} {
		c, _ := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"data":[{"code":"DUPLICATE_DATA","details":{"api_name":"Email"},"message":"duplicate data","status":"error"}]}`))
		})
		res := invoke(t, c, "contact", resolver.VerbCreate, instance.Attributes{"last_name": "Doe", "email": "d@example.com"})
		if !resolver.HasCode(res.Error(), resolver.CodeAlreadyExists) {
			t.Fatalf("%s: error = %v, want AlreadyExists", name, res.Error())
		}
		if !strings.Contains(res.Error().Error(), "Email") {
			t.Fatalf("%s: error = %v, want field name", name, res.Error())
		}
	}
}

func TestQueryUnknownIDIsNotFound(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	res := invoke(t, c, "deal", resolver.VerbQuery, instance.Attributes{"id": "D404"})
	if !resolver.HasCode(res.Error(), resolver.CodeNotFound) {
		t.Fatalf("error = %v, want NotFound", res.Error())
	}
}

func TestDealValidation(t *testing.T) {
	t.Parallel()

	c, fake := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {})
	for name, attrs := range map[string]instance.Attributes{
		"missing stage":  {"deal_name": "Big"},
		"bad amount":     {"deal_name": "Big", "stage": "Qualification", "amount": "lots"},
		"update without": {"stage": "Closed Won"},
	} {
		verb := resolver.VerbCreate
		if strings.HasPrefix(name, "update") {
			verb = resolver.VerbUpdate
		}
		res := invoke(t, c, "deal", verb, attrs)
		if !resolver.IsKind(res.Error(), resolver.KindValidation) {
			t.Fatalf("%s: error = %v, want validation", name, res.Error())
		}
	}
	if got := atomic.LoadInt32(&fake.api) + atomic.LoadInt32(&fake.tokens); got != 0 {
		t.Fatalf("HTTP calls = %d, want 0", got)
	}
}

func TestDealPayloadTypes(t *testing.T) {
	t.Parallel()

	m := modules[2]
	rec, verr := m.record(instance.Attributes{"deal_name": "Big", "stage": "Won", "amount": "1500.50", "account_id": "A1"})
	if verr != nil {
		t.Fatalf("record: %v", verr)
	}
	if rec["Amount"] != 1500.5 {
		t.Fatalf("Amount = %#v, want 1500.5", rec["Amount"])
	}
	if acc, _ := rec["Account_Name"].(map[string]any); acc["id"] != "A1" {
		t.Fatalf("Account_Name = %#v", rec["Account_Name"])
	}
	if _, ok := rec["Contact_Name"]; ok {
		t.Fatal("absent lookup was sent")
	}
}

func TestListCapsAtPageSize(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("per_page") != "100" {
			t.Errorf("per_page = %q", r.URL.Query().Get("per_page"))
		}
		recs := make([]string, 0, 130)
		for i := range 130 {
			recs = append(recs, fmt.Sprintf(`{"id":"%d"}`, i))
		}
		_, _ = fmt.Fprintf(w, `{"data":[%s],"info":{"more_records":true}}`, strings.Join(recs, ","))
	})
	res := invoke(t, c, "contact", resolver.VerbQuery, instance.Attributes{})
	if res.IsError() {
		t.Fatalf("query: %v", res.Error())
	}
	if got := len(res.MustGet().Instances()); got != pageSize {
		t.Fatalf("len = %d, want %d", got, pageSize)
	}
}

func TestDeleteChecksEnvelope(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/crm/v2/Leads/L1" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[{"code":"SUCCESS","details":{"id":"L1"},"status":"success"}]}`))
	})
	res := invoke(t, c, "lead", resolver.VerbDelete, instance.Attributes{"id": "L1"})
	if res.IsError() {
		t.Fatalf("delete: %v", res.Error())
	}
}

func TestPollerSkipsSeenIDs(t *testing.T) {
	t.Parallel()

	var pass int32
	c, _ := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/crm/v2/Leads" {
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		if atomic.AddInt32(&pass, 1) == 1 {
			_, _ = w.Write([]byte(`{"data":[{"id":"1"},{"id":"2"},{"id":"3"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"2"},{"id":"3"},{"id":"4"}]}`))
	})

	var mu sync.Mutex
	var emitted []string
	sub := instance.SubscriberFunc(func(_ context.Context, inst instance.Instance, _ bool) error {
		mu.Lock()
		defer mu.Unlock()
		emitted = append(emitted, inst.ID())
		return nil
	})
	pollers := c.Pollers(sub)
	if len(pollers) != len(modules) {
		t.Fatalf("pollers = %d, want %d", len(pollers), len(modules))
	}
	leads := pollers[0]
	for range 2 {
		if err := leads.RunOnce(context.Background()); err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
	}
	if got := strings.Join(emitted, ","); got != "1,2,3,4" {
		t.Fatalf("emitted = %s, want 1,2,3,4", got)
	}
}
