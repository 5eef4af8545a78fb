package instance

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMakeDefaultsAttributes(t *testing.T) {
	t.Parallel()

	inst := Make(" zendesk ", "ticket", nil)
	if inst.Namespace != "zendesk" {
		t.Fatalf("Namespace = %q, want %q", inst.Namespace, "zendesk")
	}
	if inst.Attributes == nil {
		t.Fatal("Attributes is nil")
	}
	if inst.ID() != "" {
		t.Fatalf("ID() = %q, want empty", inst.ID())
	}
}

func TestJSONLinesWritesOneObjectPerInstance(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewJSONLines(&buf)
	for _, id := range []string{"1", "2"} {
		if err := sink.OnSubscription(context.Background(), Make("stripe", "customer", Attributes{"id": id}), true); err != nil {
			t.Fatalf("OnSubscription: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	var got event
	if err := json.Unmarshal([]byte(lines[1]), &got); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if got.EntityType != "customer" || got.Attributes.String("id") != "2" || !got.Upsert {
		t.Fatalf("event = %+v", got)
	}
}

func TestWebhookPostsEvent(t *testing.T) {
	t.Parallel()

	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	hook, err := NewWebhook(srv.URL)
	if err != nil {
		t.Fatalf("NewWebhook: %v", err)
	}
	if err := hook.OnSubscription(context.Background(), Make("zoom", "meeting", Attributes{"id": "m1"}), true); err != nil {
		t.Fatalf("OnSubscription: %v", err)
	}
	if !strings.Contains(string(body), `"entity_type":"meeting"`) {
		t.Fatalf("body = %s", body)
	}
}

func TestWebhookSurfacesStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	hook, err := NewWebhook(srv.URL)
	if err != nil {
		t.Fatalf("NewWebhook: %v", err)
	}
	err = hook.OnSubscription(context.Background(), Make("zoom", "meeting", nil), true)
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("err = %v, want 502 error", err)
	}
}
