package airtable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/httpclient"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
)

const entityRecord = "record"

// Attributes that address a record rather than describe its fields.
var reserved = map[string]bool{
	"id":             true,
	"record_id":      true,
	"table":          true,
	"typecast":       true,
	"fields":         true,
	resolver.PathKey: true,
}

// recordFields returns the "fields" attribute (an object or a JSON string), or
// every non-reserved attribute when it is absent.
func recordFields(attrs instance.Attributes) (map[string]any, *resolver.Error) {
	switch v := attrs["fields"].(type) {
	case map[string]any:
		return v, nil
	case instance.Attributes:
		return map[string]any(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			break
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, resolver.Validationf("invalid field(s): fields (expected a JSON object: %v)", err)
		}
		return out, nil
	case nil:
	default:
		return nil, resolver.Validationf("invalid field(s): fields (expected an object)")
	}
	out := map[string]any{}
	for k, v := range attrs {
		if !reserved[k] {
			out[k] = v
		}
	}
	return out, nil
}

func (c *Connector) tablePath(attrs instance.Attributes, id string) (string, *resolver.Error) {
	if c.baseID == "" {
		return "", resolver.Configf("airtable base is not configured: set %s", envBaseID)
	}
	table := attrs.String("table")
	if table == "" {
		table = c.table
	}
	if table == "" {
		return "", resolver.Configf("airtable table is not configured: set %s or pass table", envTableName)
	}
	path := "/" + url.PathEscape(c.baseID) + "/" + url.PathEscape(table)
	if id != "" {
		path += "/" + url.PathEscape(id)
	}
	return path, nil
}

func (c *Connector) CreateRecord(ctx context.Context, attrs instance.Attributes) resolver.Result {
	fields, verr := recordFields(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	if len(fields) == 0 {
		return resolver.Fail(resolver.Validationf("missing required field(s): fields"))
	}
	path, cerr := c.tablePath(attrs, "")
	if cerr != nil {
		return resolver.Fail(cerr)
	}
	var out mapping.Object
	body := map[string]any{"fields": fields, "typecast": true}
	if err := c.client.JSON(ctx, http.MethodPost, path, nil, body, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityRecord, mapRecord(out)))
}

func (c *Connector) QueryRecord(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id := resolver.ID(attrs, "id", "record_id")
	if id == "" {
		list, err := c.listRecords(ctx, attrs.String("table"))
		if err != nil {
			return resolver.Fail(err)
		}
		return resolver.Many(list)
	}
	path, cerr := c.tablePath(attrs, id)
	if cerr != nil {
		return resolver.Fail(cerr)
	}
	var out mapping.Object
	if err := c.client.Get(ctx, path, nil, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityRecord, mapRecord(out)))
}

func (c *Connector) UpdateRecord(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "record_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	fields, verr := recordFields(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	if len(fields) == 0 {
		return resolver.Fail(resolver.Validationf("missing required field(s): fields"))
	}
	path, cerr := c.tablePath(attrs, id)
	if cerr != nil {
		return resolver.Fail(cerr)
	}
	var out mapping.Object
	body := map[string]any{"fields": fields, "typecast": true}
	if err := c.client.JSON(ctx, http.MethodPatch, path, nil, body, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityRecord, mapRecord(out)))
}

func (c *Connector) DeleteRecord(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "record_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	path, cerr := c.tablePath(attrs, id)
	if cerr != nil {
		return resolver.Fail(cerr)
	}
	if _, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: path}); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, entityRecord, id)
}

// listRecords reads the first page of table, or of the configured table when empty.
func (c *Connector) listRecords(ctx context.Context, table string) ([]instance.Instance, error) {
	path, cerr := c.tablePath(instance.Attributes{"table": table}, "")
	if cerr != nil {
		return nil, cerr
	}
	var out struct {
		Records []mapping.Object `json:"records"`
	}
	if err := c.client.Get(ctx, path, url.Values{"pageSize": {strconv.Itoa(pageSize)}}, &out); err != nil {
		return nil, err
	}
	return mapping.Instances(Kind, entityRecord, out.Records, pageSize, mapRecord), nil
}
