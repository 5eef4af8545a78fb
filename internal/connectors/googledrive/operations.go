package googledrive

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/httpclient"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
)

const (
	entityFile   = "file"
	entityFolder = "folder"

	folderMimeType  = "application/vnd.google-apps.folder"
	googleAppsMime  = "application/vnd.google-apps."
	defaultExport   = "application/pdf"
	fileFields      = "id,name,mimeType,description,parents,size,md5Checksum,webViewLink,trashed,starred,createdTime,modifiedTime,owners(emailAddress)"
	listFileFields  = "nextPageToken,files(" + fileFields + ")"
	defaultMimeType = "application/octet-stream"
)

// sharedDrives enables shared-drive items on every call.
var sharedDrives = url.Values{"supportsAllDrives": {"true"}}

func with(extra url.Values) url.Values {
	q := url.Values{}
	for k, v := range sharedDrives {
		q[k] = v
	}
	for k, v := range extra {
		q[k] = v
	}
	return q
}

type fileInput struct {
	Name          string `attr:"name"`
	Description   string `attr:"description"`
	MimeType      string `attr:"mime_type"`
	ParentID      string `attr:"parent_id"`
	Content       string `attr:"content"`
	ContentBase64 string `attr:"content_base64" validate:"omitempty,base64"`
	Starred       *bool  `attr:"starred"`
}

func (in fileInput) metadata() map[string]any {
	body := mapping.Compact(map[string]any{
		"name":        in.Name,
		"description": in.Description,
		"mimeType":    in.MimeType,
	})
	if in.Starred != nil {
		body["starred"] = *in.Starred
	}
	return body
}

func (in fileInput) content() ([]byte, bool) {
	if in.ContentBase64 != "" {
		data, _ := base64.StdEncoding.DecodeString(in.ContentBase64)
		return data, true
	}
	if in.Content != "" {
		return []byte(in.Content), true
	}
	return nil, false
}

func (c *Connector) parent(in fileInput) string {
	if in.ParentID != "" {
		return in.ParentID
	}
	return c.folderID
}

// CreateFile creates metadata only, or uploads content with a multipart/related
// request when content or content_base64 is given.
func (c *Connector) CreateFile(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "name"); err != nil {
		return resolver.Fail(err)
	}
	var in fileInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	meta := in.metadata()
	if p := c.parent(in); p != "" {
		meta["parents"] = []string{p}
	}

	data, hasContent := in.content()
	if !hasContent {
		return c.writeFile(ctx, http.MethodPost, "/files", meta)
	}
	body, contentType, err := multipartRelated(meta, in.MimeType, data)
	if err != nil {
		return resolver.Fail(resolver.Validationf("google drive: encode upload: %v", err))
	}
	resp, err := c.client.Do(ctx, httpclient.Request{
		Method:      http.MethodPost,
		Path:        c.uploadURL,
		Query:       with(url.Values{"uploadType": {"multipart"}, "fields": {fileFields}}),
		Body:        body,
		ContentType: contentType,
		Timeout:     httpclient.UploadTimeout,
	})
	if err != nil {
		return resolver.Fail(err)
	}
	var out mapping.Object
	if err := resp.JSON(&out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityFile, mapFile(out)))
}

// multipartRelated builds the two-part upload body: JSON metadata, then the media.
func multipartRelated(meta map[string]any, mimeType string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaPart, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return nil, "", err
	}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return nil, "", err
	}
	if mimeType == "" {
		mimeType = defaultMimeType
	}
	mediaPart, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {mimeType}})
	if err != nil {
		return nil, "", err
	}
	if _, err := mediaPart.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "multipart/related; boundary=" + w.Boundary(), nil
}

func (c *Connector) writeFile(ctx context.Context, method, path string, meta map[string]any) resolver.Result {
	resp, err := c.client.Do(ctx, httpclient.Request{
		Method: method,
		Path:   path,
		Query:  with(url.Values{"fields": {fileFields}}),
		JSON:   meta,
	})
	if err != nil {
		return resolver.Fail(err)
	}
	var out mapping.Object
	if err := resp.JSON(&out); err != nil {
		return resolver.Fail(err)
	}
	entity := entityFile
	if mapping.Str(out, "mimeType") == folderMimeType {
		entity = entityFolder
	}
	return resolver.One(instance.Make(Kind, entity, mapFile(out)))
}

func (c *Connector) getFile(ctx context.Context, id string) (mapping.Object, error) {
	var out mapping.Object
	err := c.client.Get(ctx, "/files/"+url.PathEscape(id), with(url.Values{"fields": {fileFields}}), &out)
	return out, err
}

func (c *Connector) QueryFile(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if id := resolver.ID(attrs, "id", "file_id"); id != "" {
		out, err := c.getFile(ctx, id)
		if err != nil {
			return resolver.Fail(err)
		}
		return resolver.One(instance.Make(Kind, entityFile, mapFile(out)))
	}
	list, err := c.list(ctx, entityFile, c.fileQuery(resolver.Stringify(attrs["parent_id"])))
	if err != nil {
		return resolver.Fail(err)
	}
	return resolver.Many(list)
}

func (c *Connector) listFiles(ctx context.Context) ([]instance.Instance, error) {
	return c.list(ctx, entityFile, c.fileQuery(""))
}

// fileQuery excludes folders and trashed items, scoped to parent (or the
// configured folder) when set.
func (c *Connector) fileQuery(parent string) string {
	q := "mimeType != '" + folderMimeType + "' and trashed = false"
	if parent == "" {
		parent = c.folderID
	}
	if parent != "" {
		q = quote(parent) + " in parents and " + q
	}
	return q
}

// quote renders a Drive query string literal.
func quote(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}

func (c *Connector) list(ctx context.Context, entity, q string) ([]instance.Instance, error) {
	var out struct {
		Files []mapping.Object `json:"files"`
	}
	query := with(url.Values{
		"q":                         {q},
		"pageSize":                  {strconv.Itoa(pageSize)},
		"fields":                    {listFileFields},
		"includeItemsFromAllDrives": {"true"},
	})
	if err := c.client.Get(ctx, "/files", query, &out); err != nil {
		return nil, err
	}
	return mapping.Instances(Kind, entity, out.Files, pageSize, mapFile), nil
}

// UpdateFile patches metadata. A parent_id moves the file.
func (c *Connector) UpdateFile(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "file_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	var in fileInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	query := with(url.Values{"fields": {fileFields}})
	if in.ParentID != "" {
		current, err := c.getFile(ctx, id)
		if err != nil {
			return resolver.Fail(err)
		}
		query.Set("addParents", in.ParentID)
		if old := mapping.Join(current, ",", "parents"); old != "" {
			query.Set("removeParents", old)
		}
	}
	resp, err := c.client.Do(ctx, httpclient.Request{
		Method: http.MethodPatch,
		Path:   "/files/" + url.PathEscape(id),
		Query:  query,
		JSON:   in.metadata(),
	})
	if err != nil {
		return resolver.Fail(err)
	}
	var out mapping.Object
	if err := resp.JSON(&out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityFile, mapFile(out)))
}

// DeleteFile deletes permanently, skipping the trash.
func (c *Connector) DeleteFile(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "file_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	if _, err := c.client.Do(ctx, httpclient.Request{
		Method: http.MethodDelete,
		Path:   "/files/" + url.PathEscape(id),
		Query:  with(nil),
	}); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, entityFile, id)
}

// DownloadFile returns the file body base64-encoded. Google Docs editor files
// are exported as export_mime_type (PDF by default).
func (c *Connector) DownloadFile(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "file_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	meta, err := c.getFile(ctx, id)
	if err != nil {
		return resolver.Fail(err)
	}
	mimeType := mapping.Str(meta, "mimeType")
	if mimeType == folderMimeType {
		return resolver.Fail(resolver.Validationf("google drive: %s is a folder", id))
	}

	req := httpclient.Request{
		Method:  http.MethodGet,
		Path:    "/files/" + url.PathEscape(id),
		Query:   with(url.Values{"alt": {"media"}}),
		Header:  http.Header{"Accept": {"*/*"}},
		Timeout: httpclient.DownloadTimeout,
	}
	if strings.HasPrefix(mimeType, googleAppsMime) {
		mimeType = resolver.Stringify(attrs["export_mime_type"])
		if mimeType == "" {
			mimeType = defaultExport
		}
		req.Path += "/export"
		req.Query = url.Values{"mimeType": {mimeType}}
	}
	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return resolver.Fail(err)
	}
	out := mapFile(meta)
	out["mime_type"] = mimeType
	out["content"] = base64.StdEncoding.EncodeToString(resp.Body)
	out["encoding"] = "base64"
	out["size"] = int64(len(resp.Body))
	return resolver.One(instance.Make(Kind, entityFile, out))
}

func (c *Connector) CreateFolder(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "name"); err != nil {
		return resolver.Fail(err)
	}
	var in fileInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	in.MimeType = folderMimeType
	meta := in.metadata()
	if p := c.parent(in); p != "" {
		meta["parents"] = []string{p}
	}
	return c.writeFile(ctx, http.MethodPost, "/files", meta)
}

func (c *Connector) QueryFolder(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if id := resolver.ID(attrs, "id", "folder_id"); id != "" {
		out, err := c.getFile(ctx, id)
		if err != nil {
			return resolver.Fail(err)
		}
		if mapping.Str(out, "mimeType") != folderMimeType {
			return resolver.Fail(resolver.Vendorf(resolver.CodeNotFound, "google drive: %s is not a folder", id))
		}
		return resolver.One(instance.Make(Kind, entityFolder, mapFile(out)))
	}
	q := "mimeType = '" + folderMimeType + "' and trashed = false"
	parent := resolver.Stringify(attrs["parent_id"])
	if parent == "" {
		parent = c.folderID
	}
	if parent != "" {
		q = quote(parent) + " in parents and " + q
	}
	list, err := c.list(ctx, entityFolder, q)
	if err != nil {
		return resolver.Fail(err)
	}
	return resolver.Many(list)
}
