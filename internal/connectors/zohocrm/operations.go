package zohocrm

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/connectors/zoho"
	"github.com/open-sspm/resolvers/internal/httpclient"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
)

type recordList struct {
	Data []mapping.Object `json:"data"`
}

func (m module) path(id string) string {
	if id == "" {
		return "/" + m.name
	}
	return "/" + m.name + "/" + url.PathEscape(id)
}

func (c *Connector) create(ctx context.Context, m module, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, m.required...); err != nil {
		return resolver.Fail(err)
	}
	rec, verr := m.record(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	id, err := c.write(ctx, http.MethodPost, m.path(""), rec)
	if err != nil {
		return resolver.Fail(err)
	}
	return c.get(ctx, m, id)
}

func (c *Connector) query(ctx context.Context, m module, attrs instance.Attributes) resolver.Result {
	if id := resolver.ID(attrs, "id", m.entity+"_id"); id != "" {
		return c.get(ctx, m, id)
	}
	list, err := c.list(ctx, m)
	if err != nil {
		return resolver.Fail(err)
	}
	return resolver.Many(list)
}

func (c *Connector) update(ctx context.Context, m module, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", m.entity+"_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	rec, verr := m.record(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	if _, err := c.write(ctx, http.MethodPut, m.path(id), rec); err != nil {
		return resolver.Fail(err)
	}
	return c.get(ctx, m, id)
}

func (c *Connector) delete(ctx context.Context, m module, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", m.entity+"_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	resp, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: m.path(id)})
	if err != nil {
		return resolver.Fail(err)
	}
	var env zoho.Envelope
	if err := resp.JSON(&env); err != nil {
		return resolver.Fail(err)
	}
	if len(env.Data) > 0 {
		if verr := zoho.DetailError(env.Data[0]); verr != nil {
			return resolver.Fail(verr)
		}
	}
	return resolver.Deleted(Kind, m.entity, id)
}

// write sends one record and returns its id from the status envelope.
// Zoho reports per-record failures inside a 2xx response.
func (c *Connector) write(ctx context.Context, method, path string, rec map[string]any) (string, error) {
	var env zoho.Envelope
	body := map[string]any{"data": []map[string]any{rec}}
	if err := c.client.JSON(ctx, method, path, nil, body, &env); err != nil {
		return "", err
	}
	if len(env.Data) == 0 {
		return "", resolver.Vendorf("", "zoho: empty response for %s %s", method, path)
	}
	if verr := zoho.DetailError(env.Data[0]); verr != nil {
		return "", verr
	}
	return resolver.Stringify(env.Data[0].Details["id"]), nil
}

// get reads one record. Zoho answers 204 with no body for unknown ids.
func (c *Connector) get(ctx context.Context, m module, id string) resolver.Result {
	var out recordList
	if err := c.client.Get(ctx, m.path(id), nil, &out); err != nil {
		return resolver.Fail(err)
	}
	if len(out.Data) == 0 {
		return resolver.Fail(resolver.Vendorf(resolver.CodeNotFound, "zoho %s %s not found", m.entity, id))
	}
	return resolver.One(instance.Make(Kind, m.entity, m.mapRecord(out.Data[0])))
}

func (c *Connector) list(ctx context.Context, m module) ([]instance.Instance, error) {
	var out recordList
	if err := c.client.Get(ctx, m.path(""), url.Values{"per_page": {strconv.Itoa(pageSize)}}, &out); err != nil {
		return nil, err
	}
	return mapping.Instances(Kind, m.entity, out.Data, pageSize, m.mapRecord), nil
}
