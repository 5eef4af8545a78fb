package freshdesk

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
	entityTicket  = "ticket"
	entityContact = "contact"

	defaultPriority = 1 // low
	defaultStatus   = 2 // open
)

type ticketInput struct {
	Subject     string   `attr:"subject"`
	Description string   `attr:"description"`
	Email       string   `attr:"email" validate:"omitempty,email"`
	RequesterID string   `attr:"requester_id"`
	Priority    int      `attr:"priority" validate:"omitempty,min=1,max=4"`
	Status      int      `attr:"status" validate:"omitempty,min=2,max=5"`
	Type        string   `attr:"type"`
	Tags        []string `attr:"tags"`
	ResponderID string   `attr:"responder_id"`
}

func (in ticketInput) payload() map[string]any {
	body := mapping.Compact(map[string]any{
		"subject":      in.Subject,
		"description":  in.Description,
		"email":        in.Email,
		"requester_id": mapping.NumericID(in.RequesterID),
		"responder_id": mapping.NumericID(in.ResponderID),
		"type":         in.Type,
		"tags":         in.Tags,
	})
	if in.Priority > 0 {
		body["priority"] = in.Priority
	}
	if in.Status > 0 {
		body["status"] = in.Status
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
	if in.Email == "" && in.RequesterID == "" {
		return resolver.Fail(resolver.Validationf("missing required field(s): email or requester_id"))
	}
	if in.Priority == 0 {
		in.Priority = defaultPriority
	}
	if in.Status == 0 {
		in.Status = defaultStatus
	}
	var out mapping.Object
	if err := c.client.JSON(ctx, http.MethodPost, "/tickets", nil, in.payload(), &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityTicket, mapTicket(out)))
}

func (c *Connector) QueryTicket(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if id := resolver.ID(attrs, "id", "ticket_id"); id != "" {
		var out mapping.Object
		if err := c.client.Get(ctx, "/tickets/"+url.PathEscape(id), nil, &out); err != nil {
			return resolver.Fail(err)
		}
		return resolver.One(instance.Make(Kind, entityTicket, mapTicket(out)))
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
	var out mapping.Object
	if err := c.client.JSON(ctx, http.MethodPut, "/tickets/"+url.PathEscape(id), nil, in.payload(), &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityTicket, mapTicket(out)))
}

func (c *Connector) DeleteTicket(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "ticket_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	if _, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: "/tickets/" + url.PathEscape(id)}); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, entityTicket, id)
}

func (c *Connector) listTickets(ctx context.Context) ([]instance.Instance, error) {
	var out []mapping.Object
	if err := c.client.Get(ctx, "/tickets", url.Values{"per_page": {strconv.Itoa(pageSize)}}, &out); err != nil {
		return nil, err
	}
	return mapping.Instances(Kind, entityTicket, out, pageSize, mapTicket), nil
}

type contactInput struct {
	Name      string `attr:"name"`
	Email     string `attr:"email" validate:"omitempty,email"`
	Phone     string `attr:"phone"`
	Mobile    string `attr:"mobile"`
	CompanyID string `attr:"company_id"`
	JobTitle  string `attr:"job_title"`
}

func (in contactInput) payload() map[string]any {
	return mapping.Compact(map[string]any{
		"name":       in.Name,
		"email":      in.Email,
		"phone":      in.Phone,
		"mobile":     in.Mobile,
		"company_id": mapping.NumericID(in.CompanyID),
		"job_title":  in.JobTitle,
	})
}

func (c *Connector) CreateContact(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "name", "email"); err != nil {
		return resolver.Fail(err)
	}
	var in contactInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	var out mapping.Object
	if err := c.client.JSON(ctx, http.MethodPost, "/contacts", nil, in.payload(), &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityContact, mapContact(out)))
}

func (c *Connector) QueryContact(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if id := resolver.ID(attrs, "id", "contact_id"); id != "" {
		var out mapping.Object
		if err := c.client.Get(ctx, "/contacts/"+url.PathEscape(id), nil, &out); err != nil {
			return resolver.Fail(err)
		}
		return resolver.One(instance.Make(Kind, entityContact, mapContact(out)))
	}
	var out []mapping.Object
	if err := c.client.Get(ctx, "/contacts", url.Values{"per_page": {strconv.Itoa(pageSize)}}, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Many(mapping.Instances(Kind, entityContact, out, pageSize, mapContact))
}

func (c *Connector) UpdateContact(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "contact_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	var in contactInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	var out mapping.Object
	if err := c.client.JSON(ctx, http.MethodPut, "/contacts/"+url.PathEscape(id), nil, in.payload(), &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityContact, mapContact(out)))
}

// DeleteContact soft-deletes the contact.
func (c *Connector) DeleteContact(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "contact_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	if _, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: "/contacts/" + url.PathEscape(id)}); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, entityContact, id)
}
