package box

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/httpclient"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
)

const (
	entityFolder = "folder"
	entityFile   = "file"

	itemFields = "type,id,name,description,size,parent,path_collection,etag,sha1,created_at,modified_at,created_by,owned_by,shared_link,item_status"
)

var fieldsQuery = url.Values{"fields": {itemFields}}

type itemInput struct {
	Name          string `attr:"name"`
	Description   string `attr:"description"`
	ParentID      string `attr:"parent_id"`
	Content       string `attr:"content"`
	ContentBase64 string `attr:"content_base64" validate:"omitempty,base64"`
	Recursive     bool   `attr:"recursive"`
}

func (in itemInput) payload() map[string]any {
	body := mapping.Compact(map[string]any{
		"name":        in.Name,
		"description": in.Description,
	})
	if in.ParentID != "" {
		body["parent"] = map[string]any{"id": in.ParentID}
	}
	return body
}

func bind(attrs instance.Attributes, required ...string) (itemInput, *resolver.Error) {
	var in itemInput
	if err := resolver.Require(attrs, required...); err != nil {
		return in, err
	}
	if err := resolver.Bind(attrs, &in); err != nil {
		return in, err
	}
	return in, nil
}

func (c *Connector) item(ctx context.Context, method, path string, body any, entity string) resolver.Result {
	resp, err := c.client.Do(ctx, httpclient.Request{Method: method, Path: path, Query: fieldsQuery, JSON: body})
	if err != nil {
		return resolver.Fail(err)
	}
	var out mapping.Object
	if err := resp.JSON(&out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entity, mapItem(out)))
}

func (c *Connector) CreateFolder(ctx context.Context, attrs instance.Attributes) resolver.Result {
	in, verr := bind(attrs, "name")
	if verr != nil {
		return resolver.Fail(verr)
	}
	if in.ParentID == "" {
		in.ParentID = rootFolderID
	}
	return c.item(ctx, http.MethodPost, "/folders", in.payload(), entityFolder)
}

// QueryFolder returns one folder by id, or the sub-folders of parent_id (the
// root folder by default).
func (c *Connector) QueryFolder(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if id := resolver.ID(attrs, "id", "folder_id"); id != "" {
		return c.item(ctx, http.MethodGet, "/folders/"+url.PathEscape(id), nil, entityFolder)
	}
	list, err := c.folderItems(ctx, parentOf(attrs), entityFolder)
	if err != nil {
		return resolver.Fail(err)
	}
	return resolver.Many(list)
}

func (c *Connector) UpdateFolder(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "folder_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	in, verr := bind(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	return c.item(ctx, http.MethodPut, "/folders/"+url.PathEscape(id), in.payload(), entityFolder)
}

// DeleteFolder moves the folder to the trash. Non-empty folders need recursive=true.
func (c *Connector) DeleteFolder(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "folder_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	in, verr := bind(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	if _, err := c.client.Do(ctx, httpclient.Request{
		Method: http.MethodDelete,
		Path:   "/folders/" + url.PathEscape(id),
		Query:  url.Values{"recursive": {strconv.FormatBool(in.Recursive)}},
	}); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, entityFolder, id)
}

func parentOf(attrs instance.Attributes) string {
	if p := resolver.Stringify(attrs["parent_id"]); p != "" {
		return p
	}
	return rootFolderID
}

// folderItems lists one page of a folder's items. A non-empty only keeps
// items of that type.
func (c *Connector) folderItems(ctx context.Context, folderID, only string) ([]instance.Instance, error) {
	var out struct {
		Entries []mapping.Object `json:"entries"`
	}
	query := url.Values{"limit": {strconv.Itoa(pageSize)}, "fields": {itemFields}}
	if err := c.client.Get(ctx, "/folders/"+url.PathEscape(folderID)+"/items", query, &out); err != nil {
		return nil, err
	}
	list := make([]instance.Instance, 0, len(out.Entries))
	for _, e := range out.Entries {
		typ := mapping.Str(e, "type")
		if typ != entityFile && typ != entityFolder {
			continue
		}
		if only != "" && typ != only {
			continue
		}
		list = append(list, instance.Make(Kind, typ, mapItem(e)))
		if len(list) == pageSize {
			break
		}
	}
	return list, nil
}

// UploadFile creates a file with a multipart/form-data upload.
func (c *Connector) UploadFile(ctx context.Context, attrs instance.Attributes) resolver.Result {
	in, verr := bind(attrs, "name")
	if verr != nil {
		return resolver.Fail(verr)
	}
	if in.Content == "" && in.ContentBase64 == "" {
		return resolver.Fail(resolver.Validationf("missing required field(s): content or content_base64"))
	}
	data := []byte(in.Content)
	if in.ContentBase64 != "" {
		data, _ = base64.StdEncoding.DecodeString(in.ContentBase64)
	}
	if in.ParentID == "" {
		in.ParentID = rootFolderID
	}

	body, contentType, err := uploadForm(in.Name, in.ParentID, data)
	if err != nil {
		return resolver.Fail(resolver.Validationf("box: encode upload: %v", err))
	}
	resp, err := c.client.Do(ctx, httpclient.Request{
		Method:      http.MethodPost,
		Path:        c.uploadURL,
		Query:       fieldsQuery,
		Body:        body,
		ContentType: contentType,
		Timeout:     httpclient.UploadTimeout,
	})
	if err != nil {
		return resolver.Fail(err)
	}
	var out struct {
		Entries []mapping.Object `json:"entries"`
	}
	if err := resp.JSON(&out); err != nil {
		return resolver.Fail(err)
	}
	if len(out.Entries) == 0 {
		return resolver.Fail(resolver.Vendorf("", "box upload returned no entries"))
	}
	return resolver.One(instance.Make(Kind, entityFile, mapItem(out.Entries[0])))
}

// uploadForm writes the "attributes" part before the "file" part, as Box requires.
func uploadForm(name, parentID string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	meta, err := json.Marshal(map[string]any{"name": name, "parent": map[string]any{"id": parentID}})
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField("attributes", string(meta)); err != nil {
		return nil, "", err
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *Connector) QueryFile(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if id := resolver.ID(attrs, "id", "file_id"); id != "" {
		return c.item(ctx, http.MethodGet, "/files/"+url.PathEscape(id), nil, entityFile)
	}
	list, err := c.folderItems(ctx, parentOf(attrs), entityFile)
	if err != nil {
		return resolver.Fail(err)
	}
	return resolver.Many(list)
}

// UpdateFile renames, re-describes or moves (parent_id) a file.
func (c *Connector) UpdateFile(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "file_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	in, verr := bind(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	return c.item(ctx, http.MethodPut, "/files/"+url.PathEscape(id), in.payload(), entityFile)
}

func (c *Connector) DeleteFile(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "file_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	if _, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: "/files/" + url.PathEscape(id)}); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, entityFile, id)
}

// DownloadFile follows Box's redirect to the download URL and returns the
// body base64-encoded.
func (c *Connector) DownloadFile(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "file_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	resp, err := c.client.Do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		Path:    "/files/" + url.PathEscape(id) + "/content",
		Header:  http.Header{"Accept": {"*/*"}},
		Timeout: httpclient.DownloadTimeout,
	})
	if err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityFile, instance.Attributes{
		"id":           id,
		"content":      base64.StdEncoding.EncodeToString(resp.Body),
		"encoding":     "base64",
		"size":         int64(len(resp.Body)),
		"content_type": resp.Header.Get("Content-Type"),
	}))
}
