package mockwapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const base = "/wapi/v2.12/"

func newTestServer() *Server {
	return New(Options{Username: "admin", Password: "infoblox", Version: "2.12"})
}

func call(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, "http://wapi.test"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("admin", "infoblox")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Unmarshal(%q): %v", rec.Body.String(), err)
	}
	return out
}

func createHost(t *testing.T, s *Server, name, addr string) string {
	t.Helper()
	rec := call(t, s, http.MethodPost, base+TypeHost, map[string]any{
		"name":      name,
		"ipv4addrs": []map[string]any{{"ipv4addr": addr}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	return decode[string](t, rec)
}

func TestHealthNeedsNoAuth(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestAuthIssuesSessionCookie(t *testing.T) {
	t.Parallel()

	s := newTestServer()

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base+TypeHost, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	rec = call(t, s, http.MethodGet, base+TypeHost, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("basic auth status = %d, want %d", rec.Code, http.StatusOK)
	}
	var session *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == CookieName {
			session = ck
		}
	}
	if session == nil || session.Value == "" {
		t.Fatalf("cookies = %v, want %s", rec.Result().Cookies(), CookieName)
	}

	req := httptest.NewRequest(http.MethodGet, base+TypeHost, nil)
	req.AddCookie(session)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestWrongPasswordIsRejected(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, base+TypeHost, nil)
	req.SetBasicAuth("admin", "nope")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestCreateAndGetHostRecord(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	ref := createHost(t, s, "web.example.com", "10.0.0.5")
	if !strings.HasPrefix(ref, TypeHost+"/") || !strings.HasSuffix(ref, ":web.example.com/default") {
		t.Fatalf("ref = %q", ref)
	}

	rec := call(t, s, http.MethodGet, base+ref, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d (%s)", rec.Code, rec.Body.String())
	}
	obj := decode[map[string]any](t, rec)
	if obj["_ref"] != ref || obj["name"] != "web.example.com" || obj["view"] != "default" {
		t.Fatalf("object = %v", obj)
	}
	addrs, _ := obj["ipv4addrs"].([]any)
	if len(addrs) != 1 || addrs[0].(map[string]any)["ipv4addr"] != "10.0.0.5" {
		t.Fatalf("ipv4addrs = %v", obj["ipv4addrs"])
	}
}

func TestDuplicateIsConflict(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	createHost(t, s, "web.example.com", "10.0.0.5")
	rec := call(t, s, http.MethodPost, base+TypeHost, map[string]any{
		"name":      "WEB.example.com",
		"ipv4addrs": []map[string]any{{"ipv4addr": "10.0.0.6"}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	body := decode[map[string]string](t, rec)
	if body["code"] != "Client.Ibap.Data.Conflict" || !strings.Contains(body["Error"], "IB.Data.Conflict") {
		t.Fatalf("body = %v", body)
	}
}

func TestUnknownRefIsNotFound(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := call(t, s, method, base+TypeA+"/bogus:x.example.com/default", map[string]any{})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s status = %d, want %d", method, rec.Code, http.StatusNotFound)
		}
		if body := decode[map[string]string](t, rec); body["code"] != "Client.Ibap.Data.NotFound" {
			t.Fatalf("%s body = %v", method, body)
		}
	}
}

func TestMaxResults(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	for i := range 3 {
		createHost(t, s, fmt.Sprintf("h%d.example.com", i), fmt.Sprintf("10.0.0.%d", i+1))
	}

	rec := call(t, s, http.MethodGet, base+TypeHost+"?_max_results=2", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("positive limit status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = call(t, s, http.MethodGet, base+TypeHost+"?_max_results=-2&_return_fields%2B=name,comment", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("negative limit status = %d", rec.Code)
	}
	if got := decode[[]map[string]any](t, rec); len(got) != 2 || got[0]["name"] != "h0.example.com" {
		t.Fatalf("items = %v", got)
	}
}

func TestNameFilter(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	createHost(t, s, "a.example.com", "10.0.0.1")
	createHost(t, s, "b.example.com", "10.0.0.2")

	rec := call(t, s, http.MethodGet, base+TypeHost+"?name=b.example.com", nil)
	got := decode[[]map[string]any](t, rec)
	if len(got) != 1 || got[0]["name"] != "b.example.com" {
		t.Fatalf("items = %v", got)
	}

	rec = call(t, s, http.MethodGet, base+TypeHost+"?ipv4addr=10.0.0.1&_return_as_object=1", nil)
	wrapped := decode[map[string][]map[string]any](t, rec)
	if len(wrapped["result"]) != 1 || wrapped["result"][0]["name"] != "a.example.com" {
		t.Fatalf("result = %v", wrapped)
	}
}

func TestUpdateRenamesAndDeleteRemoves(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	rec := call(t, s, http.MethodPost, base+TypeA, map[string]any{"name": "old.example.com", "ipv4addr": "10.1.0.1"})
	ref := decode[string](t, rec)

	rec = call(t, s, http.MethodPut, base+ref, map[string]any{"name": "new.example.com", "comment": "moved"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d (%s)", rec.Code, rec.Body.String())
	}
	newRef := decode[string](t, rec)
	if !strings.HasSuffix(newRef, ":new.example.com/default") {
		t.Fatalf("new ref = %q", newRef)
	}
	// The stale ref still resolves by its opaque id.
	if rec := call(t, s, http.MethodGet, base+ref, nil); rec.Code != http.StatusOK {
		t.Fatalf("stale ref status = %d", rec.Code)
	}

	if rec := call(t, s, http.MethodDelete, base+newRef, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := call(t, s, http.MethodGet, base+newRef, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestNetworkValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	cases := map[string]map[string]any{
		"missing network": {"comment": "x"},
		"host bits set":   {"network": "10.0.0.1/24"},
		"not a cidr":      {"network": "nope"},
		"unknown field":   {"network": "10.0.0.0/24", "bogus": 1},
	}
	for name, body := range cases {
		if rec := call(t, s, http.MethodPost, base+TypeNetwork, body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want %d", name, rec.Code, http.StatusBadRequest)
		}
	}

	rec := call(t, s, http.MethodPost, base+TypeNetwork+"?_return_fields%2B=network", map[string]any{"network": "10.0.0.0/24"})
	obj := decode[map[string]any](t, rec)
	if obj["network"] != "10.0.0.0/24" || obj["network_view"] != "default" {
		t.Fatalf("object = %v", obj)
	}
	if ref, _ := obj["_ref"].(string); !strings.HasSuffix(ref, ":10.0.0.0/24/default") {
		t.Fatalf("ref = %q", ref)
	}
}

func TestResetAndVersionCheck(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	createHost(t, s, "a.example.com", "10.0.0.1")

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/reset", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("reset status = %d", rec.Code)
	}
	if got := decode[[]map[string]any](t, call(t, s, http.MethodGet, base+TypeHost, nil)); len(got) != 0 {
		t.Fatalf("items after reset = %v", got)
	}

	if rec := call(t, s, http.MethodGet, "/wapi/v1.0/"+TypeHost, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("version status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if rec := call(t, s, http.MethodGet, base+"record:mx", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown type status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
