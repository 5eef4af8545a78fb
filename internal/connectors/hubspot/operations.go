package hubspot

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/httpclient"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
)

func (o object) base() string { return "/crm/v3/objects/" + o.path }

func (o object) idKeys() []string { return []string{"id", o.entity + "_id"} }

func (c *Connector) create(ctx context.Context, o object, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, o.required...); err != nil {
		return resolver.Fail(err)
	}
	props, verr := o.bind(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	var out mapping.Object
	if err := c.client.JSON(ctx, http.MethodPost, o.base(), nil, map[string]any{"properties": props}, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, o.entity, o.mapper(out)))
}

func (c *Connector) query(ctx context.Context, o object, attrs instance.Attributes) resolver.Result {
	id := resolver.ID(attrs, o.idKeys()...)
	if id == "" {
		list, err := c.list(ctx, o)
		if err != nil {
			return resolver.Fail(err)
		}
		return resolver.Many(list)
	}
	var out mapping.Object
	query := url.Values{"properties": {strings.Join(o.properties, ",")}}
	if err := c.client.Get(ctx, o.base()+"/"+url.PathEscape(id), query, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, o.entity, o.mapper(out)))
}

func (c *Connector) update(ctx context.Context, o object, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, o.idKeys()...)
	if verr != nil {
		return resolver.Fail(verr)
	}
	props, verr := o.bind(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	if len(props) == 0 {
		return resolver.Fail(resolver.Validationf("nothing to update for %s %s", o.entity, id))
	}
	var out mapping.Object
	if err := c.client.JSON(ctx, http.MethodPatch, o.base()+"/"+url.PathEscape(id), nil, map[string]any{"properties": props}, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, o.entity, o.mapper(out)))
}

// delete archives the record; HubSpot keeps it restorable for 90 days.
func (c *Connector) delete(ctx context.Context, o object, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, o.idKeys()...)
	if verr != nil {
		return resolver.Fail(verr)
	}
	if _, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: o.base() + "/" + url.PathEscape(id)}); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, o.entity, id)
}

func (c *Connector) list(ctx context.Context, o object) ([]instance.Instance, error) {
	var out struct {
		Results []mapping.Object `json:"results"`
	}
	query := url.Values{
		"limit":      {strconv.Itoa(pageSize)},
		"properties": {strings.Join(o.properties, ",")},
	}
	if err := c.client.Get(ctx, o.base(), query, &out); err != nil {
		return nil, err
	}
	return mapping.Instances(Kind, o.entity, out.Results, pageSize, o.mapper), nil
}
