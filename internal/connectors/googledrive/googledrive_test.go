package googledrive

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
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

func newTestConnector(t *testing.T, env map[string]string, handler http.HandlerFunc) (*Connector, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	merged := map[string]string{envBaseURL: srv.URL, envAccessToken: "ya29.static", envTokenURL: srv.URL + "/token"}
	for k, v := range env {
		merged[k] = v
	}
	return New(registry.Deps{Env: config.MapEnv(merged), Logger: logging.Discard()}), &calls
}

func TestMapFileGolden(t *testing.T) {
	t.Parallel()

	var raw map[string]any
	fixture := `{"id":"f1","name":"report.csv","mimeType":"text/csv","parents":["p1","p2"],"size":"2048",
		"md5Checksum":"abc","webViewLink":"https://drive.google.com/file/d/f1/view","trashed":false,"starred":true,
		"owners":[{"emailAddress":"ann@example.com"},{"emailAddress":"bob@example.com"}],
		"createdTime":"2024-01-01T00:00:00.000Z","modifiedTime":"2024-01-02T00:00:00.000Z"}`
	if err := json.Unmarshal([]byte(fixture), &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := instance.Attributes{
		"id":            "f1",
		"name":          "report.csv",
		"mime_type":     "text/csv",
		"description":   "",
		"parents":       "p1,p2",
		"size":          int64(2048),
		"md5_checksum":  "abc",
		"web_view_link": "https://drive.google.com/file/d/f1/view",
		"trashed":       false,
		"starred":       true,
		"owners":        "ann@example.com,bob@example.com",
		"created_time":  "2024-01-01T00:00:00.000Z",
		"modified_time": "2024-01-02T00:00:00.000Z",
	}
	if got := mapFile(raw); !reflect.DeepEqual(got, want) {
		t.Fatalf("mapFile = %#v, want %#v", got, want)
	}
}

func TestCreateFileMetadataUsesConfiguredFolder(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, map[string]string{envFolderID: "fold1"}, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/drive/v3/files" || r.URL.Query().Get("supportsAllDrives") != "true" {
			t.Errorf("request = %s %s", r.Method, r.URL)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer ya29.static" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "notes" || !reflect.DeepEqual(body["parents"], []any{"fold1"}) {
			t.Errorf("body = %v", body)
		}
		_, _ = w.Write([]byte(`{"id":"f9","name":"notes","parents":["fold1"]}`))
	})

	res := c.CreateFile(context.Background(), instance.Attributes{"name": "notes"})
	if res.IsError() {
		t.Fatalf("CreateFile: %v", res.Error())
	}
	inst, _ := res.MustGet().Instance()
	if inst.ID() != "f9" || inst.EntityType != entityFile {
		t.Fatalf("instance = %+v", inst)
	}
}

func TestCreateFileUploadsMultipart(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload/drive/v3/files" || r.URL.Query().Get("uploadType") != "multipart" {
			t.Errorf("request = %s", r.URL)
		}
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/related" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
			return
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		meta, _ := mr.NextPart()
		var m map[string]any
		_ = json.NewDecoder(meta).Decode(&m)
		media, _ := mr.NextPart()
		data, _ := io.ReadAll(media)
		if m["name"] != "hello.txt" || media.Header.Get("Content-Type") != "text/plain" || string(data) != "hello" {
			t.Errorf("meta = %v, media = %q (%s)", m, data, media.Header.Get("Content-Type"))
		}
		_, _ = w.Write([]byte(`{"id":"f2","name":"hello.txt","mimeType":"text/plain","size":"5"}`))
	})

	res := c.CreateFile(context.Background(), instance.Attributes{
		"name":           "hello.txt",
		"mime_type":      "text/plain",
		"content_base64": base64.StdEncoding.EncodeToString([]byte("hello")),
	})
	if res.IsError() {
		t.Fatalf("CreateFile: %v", res.Error())
	}
	inst, _ := res.MustGet().Instance()
	if inst.Attributes["size"] != int64(5) {
		t.Fatalf("size = %v", inst.Attributes["size"])
	}
}

func TestValidationWithoutHTTP(t *testing.T) {
	t.Parallel()

	c, calls := newTestConnector(t, nil, func(http.ResponseWriter, *http.Request) {})
	ctx := context.Background()
	for name, res := range map[string]resolver.Result{
		"file without name":   c.CreateFile(ctx, instance.Attributes{"content": "x"}),
		"bad base64":          c.CreateFile(ctx, instance.Attributes{"name": "a", "content_base64": "%%%"}),
		"folder without name": c.CreateFolder(ctx, instance.Attributes{}),
		"download without id": c.DownloadFile(ctx, instance.Attributes{}),
		"update without id":   c.UpdateFile(ctx, instance.Attributes{"name": "b"}),
	} {
		if !resolver.IsKind(res.Error(), resolver.KindValidation) {
			t.Fatalf("%s: error = %v, want validation", name, res.Error())
		}
	}
	if got := atomic.LoadInt32(calls); got != 0 {
		t.Fatalf("HTTP calls = %d, want 0", got)
	}
}

func TestQueryFilesScopesToFolderAndCaps(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, map[string]string{envFolderID: "fold1"}, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("pageSize") != "100" || !strings.HasPrefix(q.Get("q"), "'fold1' in parents and mimeType != ") {
			t.Errorf("query = %v", q)
		}
		files := make([]string, 0, 130)
		for i := range 130 {
			files = append(files, fmt.Sprintf(`{"id":"f%d"}`, i))
		}
		_, _ = fmt.Fprintf(w, `{"files":[%s]}`, strings.Join(files, ","))
	})

	res := c.QueryFile(context.Background(), instance.Attributes{})
	if res.IsError() {
		t.Fatalf("QueryFile: %v", res.Error())
	}
	if got := len(res.MustGet().Instances()); got != pageSize {
		t.Fatalf("len = %d, want %d", got, pageSize)
	}
}

func TestDownloadFile(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, nil, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/drive/v3/files/f1" && r.URL.Query().Get("alt") == "media":
			_, _ = w.Write([]byte("raw bytes"))
		case r.URL.Path == "/drive/v3/files/f1":
			_, _ = w.Write([]byte(`{"id":"f1","name":"a.bin","mimeType":"application/octet-stream"}`))
		case r.URL.Path == "/drive/v3/files/doc1/export":
			if r.URL.Query().Get("mimeType") != "text/plain" {
				t.Errorf("export mimeType = %q", r.URL.Query().Get("mimeType"))
			}
			_, _ = w.Write([]byte("doc text"))
		case r.URL.Path == "/drive/v3/files/doc1":
			_, _ = w.Write([]byte(`{"id":"doc1","name":"Plan","mimeType":"application/vnd.google-apps.document"}`))
		default:
			t.Errorf("unexpected %s", r.URL)
		}
	})

	res := c.DownloadFile(context.Background(), instance.Attributes{"id": "f1"})
	if res.IsError() {
		t.Fatalf("DownloadFile: %v", res.Error())
	}
	inst, _ := res.MustGet().Instance()
	if inst.Attributes["content"] != base64.StdEncoding.EncodeToString([]byte("raw bytes")) || inst.Attributes["size"] != int64(9) {
		t.Fatalf("attributes = %+v", inst.Attributes)
	}

	res = c.DownloadFile(context.Background(), instance.Attributes{"id": "doc1", "export_mime_type": "text/plain"})
	if res.IsError() {
		t.Fatalf("DownloadFile export: %v", res.Error())
	}
	inst, _ = res.MustGet().Instance()
	if inst.Attributes["mime_type"] != "text/plain" || inst.Attributes["content"] != base64.StdEncoding.EncodeToString([]byte("doc text")) {
		t.Fatalf("attributes = %+v", inst.Attributes)
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"File not found: nope.","errors":[{"reason":"notFound"}]}}`))
	})
	res := c.QueryFile(context.Background(), instance.Attributes{"id": "nope"})
	if err := resolver.ErrorOf(res); err == nil || err.Code != resolver.CodeNotFound || err.Status != http.StatusNotFound {
		t.Fatalf("error = %#v", err)
	}
}

func TestQueryFolderRejectsPlainFile(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, nil, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"f1","mimeType":"text/plain"}`))
	})
	if res := c.QueryFolder(context.Background(), instance.Attributes{"id": "f1"}); !resolver.HasCode(res.Error(), resolver.CodeNotFound) {
		t.Fatalf("error = %v", res.Error())
	}
}

func TestRefreshTokenFlow(t *testing.T) {
	t.Parallel()

	var tokens int32
	c, _ := newTestConnector(t, map[string]string{
		envAccessToken:  "",
		envClientID:     "cid",
		envClientSecret: "secret",
		envRefreshToken: "1//rt",
	}, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			atomic.AddInt32(&tokens, 1)
			_ = r.ParseForm()
			if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "1//rt" {
				t.Errorf("form = %v", r.PostForm)
			}
			_, _ = w.Write([]byte(`{"access_token":"ya29.fresh","token_type":"Bearer","expires_in":3600}`))
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer ya29.fresh" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"files":[]}`))
	})

	for range 2 {
		if res := c.QueryFolder(context.Background(), instance.Attributes{}); res.IsError() {
			t.Fatalf("QueryFolder: %v", res.Error())
		}
	}
	if got := atomic.LoadInt32(&tokens); got != 1 {
		t.Fatalf("token fetches = %d, want 1", got)
	}
}

func TestServiceAccountFlow(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	keyPEM := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
	saJSON, _ := json.Marshal(map[string]string{
		"type":           "service_account",
		"client_email":   "svc@project.iam.gserviceaccount.com",
		"private_key_id": "k1",
		"private_key":    keyPEM,
		"token_uri":      "https://oauth2.googleapis.com/token",
	})

	c, _ := newTestConnector(t, map[string]string{
		envAccessToken:       "",
		envServiceAccountKey: string(saJSON),
		envSubject:           "admin@example.com",
	}, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			_ = r.ParseForm()
			if r.PostForm.Get("grant_type") != "urn:ietf:params:oauth:grant-type:jwt-bearer" {
				t.Errorf("form = %v", r.PostForm)
			}
			_, _ = w.Write([]byte(`{"access_token":"ya29.sa","token_type":"Bearer","expires_in":3600}`))
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer ya29.sa" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"id":"fold1","mimeType":"application/vnd.google-apps.folder"}`))
	})

	res := c.QueryFolder(context.Background(), instance.Attributes{"id": "fold1"})
	if res.IsError() {
		t.Fatalf("QueryFolder: %v", res.Error())
	}
}

func TestMissingCredentials(t *testing.T) {
	t.Parallel()

	c, calls := newTestConnector(t, map[string]string{envAccessToken: "", envClientID: "cid"}, func(http.ResponseWriter, *http.Request) {})
	res := c.QueryFile(context.Background(), instance.Attributes{})
	if !resolver.IsKind(res.Error(), resolver.KindConfig) {
		t.Fatalf("error = %v, want config", res.Error())
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Fatal("unexpected HTTP call")
	}
}

func TestPollerEmitsFiles(t *testing.T) {
	t.Parallel()

	c, _ := newTestConnector(t, nil, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"files":[{"id":"a"},{"id":"b"}]}`))
	})
	var got []string
	sub := instance.SubscriberFunc(func(_ context.Context, inst instance.Instance, _ bool) error {
		got = append(got, inst.ID())
		return nil
	})
	if err := c.Pollers(sub)[0].RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if strings.Join(got, ",") != "a,b" {
		t.Fatalf("emitted = %v", got)
	}
}
