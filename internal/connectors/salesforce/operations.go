package salesforce

import (
	"context"
	"net/http"
	"net/url"

	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/httpclient"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
)

func (c *Connector) sobjectURL(ctx context.Context, o sobject, id string) (string, error) {
	base, err := c.dataURL(ctx)
	if err != nil {
		return "", err
	}
	u := base + "/sobjects/" + o.name
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u, nil
}

// create inserts the record, then reads it back so the result carries
// server-populated fields.
func (c *Connector) create(ctx context.Context, o sobject, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, o.required...); err != nil {
		return resolver.Fail(err)
	}
	body, verr := o.record(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	endpoint, err := c.sobjectURL(ctx, o, "")
	if err != nil {
		return resolver.Fail(err)
	}
	var out saveResult
	if err := c.client.JSON(ctx, http.MethodPost, endpoint, nil, body, &out); err != nil {
		return resolver.Fail(err)
	}
	if verr := out.err(); verr != nil {
		return resolver.Fail(verr)
	}
	return c.get(ctx, o, out.ID)
}

func (c *Connector) get(ctx context.Context, o sobject, id string) resolver.Result {
	endpoint, err := c.sobjectURL(ctx, o, id)
	if err != nil {
		return resolver.Fail(err)
	}
	var out mapping.Object
	if err := c.client.Get(ctx, endpoint, url.Values{"fields": {o.selectList()}}, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, o.entity, o.mapRecord(out)))
}

func (c *Connector) query(ctx context.Context, o sobject, attrs instance.Attributes) resolver.Result {
	if id := resolver.ID(attrs, "id", "Id"); id != "" {
		return c.get(ctx, o, id)
	}
	list, err := c.list(ctx, o)
	if err != nil {
		return resolver.Fail(err)
	}
	return resolver.Many(list)
}

// list runs the SOQL query for the object, newest changes first.
func (c *Connector) list(ctx context.Context, o sobject) ([]instance.Instance, error) {
	base, err := c.dataURL(ctx)
	if err != nil {
		return nil, err
	}
	var out struct {
		Records []mapping.Object `json:"records"`
	}
	if err := c.client.Get(ctx, base+"/query", url.Values{"q": {o.soql()}}, &out); err != nil {
		return nil, err
	}
	return mapping.Instances(Kind, o.entity, out.Records, pageSize, o.mapRecord), nil
}

func (c *Connector) update(ctx context.Context, o sobject, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "Id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	body, verr := o.record(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	if len(body) == 0 {
		return resolver.Fail(resolver.Validationf("no updatable %s fields given", o.entity))
	}
	endpoint, err := c.sobjectURL(ctx, o, id)
	if err != nil {
		return resolver.Fail(err)
	}
	if err := c.client.JSON(ctx, http.MethodPatch, endpoint, nil, body, nil); err != nil {
		return resolver.Fail(err)
	}
	return c.get(ctx, o, id)
}

func (c *Connector) delete(ctx context.Context, o sobject, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "Id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	endpoint, err := c.sobjectURL(ctx, o, id)
	if err != nil {
		return resolver.Fail(err)
	}
	if _, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: endpoint}); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, o.entity, id)
}
