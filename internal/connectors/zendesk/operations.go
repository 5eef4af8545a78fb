package zendesk

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
	entityTicket = "ticket"
	entityUser   = "user"
)

type ticketInput struct {
	Subject     string   `attr:"subject"`
	Description string   `attr:"description"`
	Priority    string   `attr:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Status      string   `attr:"status" validate:"omitempty,oneof=new open pending hold solved closed"`
	Type        string   `attr:"type" validate:"omitempty,oneof=problem incident question task"`
	Tags        []string `attr:"tags"`
	RequesterID string   `attr:"requester_id"`
	AssigneeID  string   `attr:"assignee_id"`
	Comment     string   `attr:"comment"`
}

func (in ticketInput) payload() map[string]any {
	body := mapping.Compact(map[string]any{
		"subject":      in.Subject,
		"priority":     in.Priority,
		"status":       in.Status,
		"type":         in.Type,
		"tags":         in.Tags,
		"requester_id": mapping.NumericID(in.RequesterID),
		"assignee_id":  mapping.NumericID(in.AssigneeID),
	})
	comment := in.Comment
	if comment == "" {
		comment = in.Description
	}
	if comment != "" {
		body["comment"] = map[string]any{"body": comment}
	}
	return body
}

func (c *Connector) CreateTicket(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "subject", "description"); err != nil {
		return resolver.Fail(err)
	}
	var in ticketInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	var out struct {
		Ticket mapping.Object `json:"ticket"`
	}
	if err := c.client.JSON(ctx, http.MethodPost, "/tickets.json", nil, map[string]any{"ticket": in.payload()}, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityTicket, mapTicket(out.Ticket)))
}

// QueryTicket returns one ticket for an id, otherwise the first page of tickets.
func (c *Connector) QueryTicket(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if id := resolver.ID(attrs, "id", "ticket_id"); id != "" {
		var out struct {
			Ticket mapping.Object `json:"ticket"`
		}
		if err := c.client.Get(ctx, "/tickets/"+url.PathEscape(id)+".json", nil, &out); err != nil {
			return resolver.Fail(err)
		}
		return resolver.One(instance.Make(Kind, entityTicket, mapTicket(out.Ticket)))
	}
	list, err := c.listTickets(ctx)
	if err != nil {
		return resolver.Fail(err)
	}
	return resolver.Many(list)
}

func (c *Connector) UpdateTicket(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "ticket_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	var in ticketInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	var out struct {
		Ticket mapping.Object `json:"ticket"`
	}
	if err := c.client.JSON(ctx, http.MethodPut, "/tickets/"+url.PathEscape(id)+".json", nil, map[string]any{"ticket": in.payload()}, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityTicket, mapTicket(out.Ticket)))
}

func (c *Connector) DeleteTicket(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "ticket_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	if _, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: "/tickets/" + url.PathEscape(id) + ".json"}); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, entityTicket, id)
}

func (c *Connector) listTickets(ctx context.Context) ([]instance.Instance, error) {
	var out struct {
		Tickets []mapping.Object `json:"tickets"`
	}
	if err := c.client.Get(ctx, "/tickets.json", url.Values{"per_page": {strconv.Itoa(pageSize)}}, &out); err != nil {
		return nil, err
	}
	return mapping.Instances(Kind, entityTicket, out.Tickets, pageSize, mapTicket), nil
}

type userInput struct {
	Name           string `attr:"name"`
	Email          string `attr:"email" validate:"omitempty,email"`
	Role           string `attr:"role" validate:"omitempty,oneof=end-user agent admin"`
	Phone          string `attr:"phone"`
	OrganizationID string `attr:"organization_id"`
}

func (in userInput) payload() map[string]any {
	return mapping.Compact(map[string]any{
		"name":            in.Name,
		"email":           in.Email,
		"role":            in.Role,
		"phone":           in.Phone,
		"organization_id": mapping.NumericID(in.OrganizationID),
	})
}

func (c *Connector) CreateUser(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "name", "email"); err != nil {
		return resolver.Fail(err)
	}
	var in userInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	var out struct {
		User mapping.Object `json:"user"`
	}
	if err := c.client.JSON(ctx, http.MethodPost, "/users.json", nil, map[string]any{"user": in.payload()}, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityUser, mapUser(out.User)))
}

func (c *Connector) QueryUser(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if id := resolver.ID(attrs, "id", "user_id"); id != "" {
		var out struct {
			User mapping.Object `json:"user"`
		}
		if err := c.client.Get(ctx, "/users/"+url.PathEscape(id)+".json", nil, &out); err != nil {
			return resolver.Fail(err)
		}
		return resolver.One(instance.Make(Kind, entityUser, mapUser(out.User)))
	}
	var out struct {
		Users []mapping.Object `json:"users"`
	}
	if err := c.client.Get(ctx, "/users.json", url.Values{"per_page": {strconv.Itoa(pageSize)}}, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Many(mapping.Instances(Kind, entityUser, out.Users, pageSize, mapUser))
}

func (c *Connector) UpdateUser(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "user_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	var in userInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	var out struct {
		User mapping.Object `json:"user"`
	}
	if err := c.client.JSON(ctx, http.MethodPut, "/users/"+url.PathEscape(id)+".json", nil, map[string]any{"user": in.payload()}, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityUser, mapUser(out.User)))
}

func (c *Connector) DeleteUser(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "user_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	if _, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: "/users/" + url.PathEscape(id) + ".json"}); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, entityUser, id)
}
