package infoblox

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/httpclient"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
)

func (k objectKind) fields() url.Values {
	return url.Values{"_return_fields+": {k.returnFields}}
}

func (c *Connector) create(ctx context.Context, k objectKind, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, k.required...); err != nil {
		return resolver.Fail(err)
	}
	body, verr := k.payload(attrs, true)
	if verr != nil {
		return resolver.Fail(verr)
	}
	var out mapping.Object
	if err := c.client.JSON(ctx, http.MethodPost, "/"+k.objtype, k.fields(), body, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, k.entity, k.mapper(out)))
}

func (c *Connector) query(ctx context.Context, k objectKind, attrs instance.Attributes) resolver.Result {
	ref, verr := k.ref(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	if ref != "" {
		var out mapping.Object
		if err := c.client.Get(ctx, "/"+ref, k.fields(), &out); err != nil {
			return resolver.Fail(err)
		}
		return resolver.One(instance.Make(Kind, k.entity, k.mapper(out)))
	}
	list, err := c.list(ctx, k, attrs)
	if err != nil {
		return resolver.Fail(err)
	}
	return resolver.Many(list)
}

// list asks WAPI for at most maxResults objects; a negative _max_results
// truncates instead of failing on larger result sets.
func (c *Connector) list(ctx context.Context, k objectKind, attrs instance.Attributes) ([]instance.Instance, error) {
	q := k.fields()
	q.Set("_max_results", strconv.Itoa(-maxResults))
	for _, f := range k.filters {
		if v := resolver.Stringify(attrs[f]); v != "" {
			q.Set(f, v)
		}
	}
	var out []mapping.Object
	if err := c.client.Get(ctx, "/"+k.objtype, q, &out); err != nil {
		return nil, err
	}
	return mapping.Instances(Kind, k.entity, out, maxResults, k.mapper), nil
}

func (c *Connector) update(ctx context.Context, k objectKind, attrs instance.Attributes) resolver.Result {
	ref, verr := k.ref(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	if ref == "" {
		return resolver.Fail(resolver.Validationf("missing required field(s): id"))
	}
	body, verr := k.payload(attrs, false)
	if verr != nil {
		return resolver.Fail(verr)
	}
	if len(body) == 0 {
		return resolver.Fail(resolver.Validationf("no updatable fields given for %s", k.entity))
	}
	var out mapping.Object
	if err := c.client.JSON(ctx, http.MethodPut, "/"+ref, k.fields(), body, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, k.entity, k.mapper(out)))
}

func (c *Connector) delete(ctx context.Context, k objectKind, attrs instance.Attributes) resolver.Result {
	ref, verr := k.ref(attrs)
	if verr != nil {
		return resolver.Fail(verr)
	}
	if ref == "" {
		return resolver.Fail(resolver.Validationf("missing required field(s): id"))
	}
	if _, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: "/" + ref}); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, k.entity, ref)
}
