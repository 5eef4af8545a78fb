package servicenow

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

const (
	entityIncident = "incident"
	entityUser     = "user"

	tableIncident = "incident"
	tableUser     = "sys_user"
)

// Reference fields come back as plain sys_ids.
var readQuery = url.Values{"sysparm_exclude_reference_link": {"true"}}

type envelope struct {
	Result mapping.Object `json:"result"`
}

func (c *Connector) get(ctx context.Context, table, id, entity string, fn func(mapping.Object) instance.Attributes) resolver.Result {
	var out envelope
	if err := c.client.Get(ctx, "/"+table+"/"+url.PathEscape(id), readQuery, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entity, fn(out.Result)))
}

func (c *Connector) write(ctx context.Context, method, path, entity string, body map[string]any, fn func(mapping.Object) instance.Attributes) resolver.Result {
	var out envelope
	if err := c.client.JSON(ctx, method, path, readQuery, body, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entity, fn(out.Result)))
}

func (c *Connector) remove(ctx context.Context, table, id, entity string) resolver.Result {
	if _, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: "/" + table + "/" + url.PathEscape(id)}); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, entity, id)
}

func (c *Connector) list(ctx context.Context, table, entity string, fn func(mapping.Object) instance.Attributes) ([]instance.Instance, error) {
	var out struct {
		Result []mapping.Object `json:"result"`
	}
	query := url.Values{
		"sysparm_limit":                  {strconv.Itoa(pageSize)},
		"sysparm_exclude_reference_link": {"true"},
	}
	if err := c.client.Get(ctx, "/"+table, query, &out); err != nil {
		return nil, err
	}
	return mapping.Instances(Kind, entity, out.Result, pageSize, fn), nil
}

type incidentInput struct {
	ShortDescription string `attr:"short_description"`
	Description      string `attr:"description"`
	Urgency          string `attr:"urgency" validate:"omitempty,oneof=1 2 3"`
	Impact           string `attr:"impact" validate:"omitempty,oneof=1 2 3"`
	State            string `attr:"state"`
	Category         string `attr:"category"`
	CallerID         string `attr:"caller_id"`
	AssignedTo       string `attr:"assigned_to"`
	AssignmentGroup  string `attr:"assignment_group"`
	CloseCode        string `attr:"close_code"`
	CloseNotes       string `attr:"close_notes"`
}

func (in incidentInput) payload() map[string]any {
	return mapping.Compact(map[string]any{
		"short_description": in.ShortDescription,
		"description":       in.Description,
		"urgency":           in.Urgency,
		"impact":            in.Impact,
		"state":             in.State,
		"category":          in.Category,
		"caller_id":         in.CallerID,
		"assigned_to":       in.AssignedTo,
		"assignment_group":  in.AssignmentGroup,
		"close_code":        in.CloseCode,
		"close_notes":       in.CloseNotes,
	})
}

func (c *Connector) CreateIncident(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "short_description"); err != nil {
		return resolver.Fail(err)
	}
	var in incidentInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	return c.write(ctx, http.MethodPost, "/"+tableIncident, entityIncident, in.payload(), mapIncident)
}

func (c *Connector) QueryIncident(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id := resolver.ID(attrs, "id", "sys_id")
	if id == "" {
		list, err := c.list(ctx, tableIncident, entityIncident, mapIncident)
		if err != nil {
			return resolver.Fail(err)
		}
		return resolver.Many(list)
	}
	return c.get(ctx, tableIncident, id, entityIncident, mapIncident)
}

func (c *Connector) UpdateIncident(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "sys_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	var in incidentInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	return c.write(ctx, http.MethodPatch, "/"+tableIncident+"/"+url.PathEscape(id), entityIncident, in.payload(), mapIncident)
}

func (c *Connector) DeleteIncident(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "sys_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	return c.remove(ctx, tableIncident, id, entityIncident)
}

type userInput struct {
	UserName   string `attr:"user_name"`
	FirstName  string `attr:"first_name"`
	LastName   string `attr:"last_name"`
	Email      string `attr:"email" validate:"omitempty,email"`
	Title      string `attr:"title"`
	Department string `attr:"department"`
	Phone      string `attr:"phone"`
	Active     string `attr:"active" validate:"omitempty,boolean"`
}

func (in userInput) payload() map[string]any {
	return mapping.Compact(map[string]any{
		"user_name":  in.UserName,
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"email":      in.Email,
		"title":      in.Title,
		"department": in.Department,
		"phone":      in.Phone,
		"active":     in.Active,
	})
}

func (c *Connector) CreateUser(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "user_name"); err != nil {
		return resolver.Fail(err)
	}
	var in userInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	return c.write(ctx, http.MethodPost, "/"+tableUser, entityUser, in.payload(), mapUser)
}

func (c *Connector) QueryUser(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id := resolver.ID(attrs, "id", "sys_id")
	if id == "" {
		list, err := c.list(ctx, tableUser, entityUser, mapUser)
		if err != nil {
			return resolver.Fail(err)
		}
		return resolver.Many(list)
	}
	return c.get(ctx, tableUser, id, entityUser, mapUser)
}

func (c *Connector) UpdateUser(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "sys_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	var in userInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	return c.write(ctx, http.MethodPatch, "/"+tableUser+"/"+url.PathEscape(id), entityUser, in.payload(), mapUser)
}

func (c *Connector) DeleteUser(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "sys_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	return c.remove(ctx, tableUser, id, entityUser)
}
