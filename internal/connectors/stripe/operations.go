package stripe

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/httpclient"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
)

const (
	entityCustomer      = "customer"
	entityPaymentIntent = "payment_intent"

	metadataPrefix = "metadata."
)

// setForm adds non-empty values to form.
func setForm(form url.Values, values map[string]string) {
	for k, v := range values {
		if strings.TrimSpace(v) != "" {
			form.Set(k, v)
		}
	}
}

// addMetadata copies "metadata.<key>" attributes into metadata[<key>].
func addMetadata(form url.Values, attrs instance.Attributes) {
	for k, v := range attrs {
		key, ok := strings.CutPrefix(k, metadataPrefix)
		if !ok || key == "" {
			continue
		}
		form.Set("metadata["+key+"]", resolver.Stringify(v))
	}
}

// post sends a form body. Creates carry a fresh Idempotency-Key.
func (c *Connector) post(ctx context.Context, path string, form url.Values, idempotent bool) (mapping.Object, error) {
	req := httpclient.Request{Method: http.MethodPost, Path: path, Form: form}
	if idempotent {
		req.Header = http.Header{"Idempotency-Key": {uuid.NewString()}}
	}
	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var out mapping.Object
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Connector) list(ctx context.Context, path, entity string, fn func(mapping.Object) instance.Attributes) ([]instance.Instance, error) {
	var out struct {
		Data []mapping.Object `json:"data"`
	}
	if err := c.client.Get(ctx, path, url.Values{"limit": {strconv.Itoa(pageSize)}}, &out); err != nil {
		return nil, err
	}
	return mapping.Instances(Kind, entity, out.Data, pageSize, fn), nil
}

type customerInput struct {
	Email       string `attr:"email" validate:"omitempty,email"`
	Name        string `attr:"name"`
	Phone       string `attr:"phone"`
	Description string `attr:"description"`
}

func (in customerInput) form(attrs instance.Attributes) url.Values {
	form := url.Values{}
	setForm(form, map[string]string{
		"email":       in.Email,
		"name":        in.Name,
		"phone":       in.Phone,
		"description": in.Description,
	})
	addMetadata(form, attrs)
	return form
}

func (c *Connector) CreateCustomer(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "email"); err != nil {
		return resolver.Fail(err)
	}
	var in customerInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	out, err := c.post(ctx, "/customers", in.form(attrs), true)
	if err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityCustomer, mapCustomer(out)))
}

func (c *Connector) QueryCustomer(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id := resolver.ID(attrs, "id", "customer_id")
	if id == "" {
		list, err := c.listCustomers(ctx)
		if err != nil {
			return resolver.Fail(err)
		}
		return resolver.Many(list)
	}
	var out mapping.Object
	if err := c.client.Get(ctx, "/customers/"+url.PathEscape(id), nil, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityCustomer, mapCustomer(out)))
}

func (c *Connector) UpdateCustomer(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "customer_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	var in customerInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	out, err := c.post(ctx, "/customers/"+url.PathEscape(id), in.form(attrs), false)
	if err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityCustomer, mapCustomer(out)))
}

func (c *Connector) DeleteCustomer(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "customer_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	if _, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: "/customers/" + url.PathEscape(id)}); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, entityCustomer, id)
}

func (c *Connector) listCustomers(ctx context.Context) ([]instance.Instance, error) {
	return c.list(ctx, "/customers", entityCustomer, mapCustomer)
}

type paymentIntentInput struct {
	// Amount is in major units ("12.34"); Stripe expects minor units.
	Amount        string   `attr:"amount" validate:"omitempty,numeric"`
	Currency      string   `attr:"currency" validate:"omitempty,len=3"`
	Customer      string   `attr:"customer_id"`
	Description   string   `attr:"description"`
	ReceiptEmail  string   `attr:"receipt_email" validate:"omitempty,email"`
	PaymentMethod []string `attr:"payment_method_types"`
}

func (in paymentIntentInput) form(attrs instance.Attributes) url.Values {
	form := url.Values{}
	if cents, ok := mapping.ToMinorUnits(in.Amount); ok {
		form.Set("amount", strconv.FormatInt(cents, 10))
	}
	setForm(form, map[string]string{
		"currency":      strings.ToLower(in.Currency),
		"customer":      in.Customer,
		"description":   in.Description,
		"receipt_email": in.ReceiptEmail,
	})
	for _, pm := range in.PaymentMethod {
		form.Add("payment_method_types[]", pm)
	}
	addMetadata(form, attrs)
	return form
}

func (c *Connector) CreatePaymentIntent(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "amount", "currency"); err != nil {
		return resolver.Fail(err)
	}
	var in paymentIntentInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	out, err := c.post(ctx, "/payment_intents", in.form(attrs), true)
	if err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityPaymentIntent, mapPaymentIntent(out)))
}

func (c *Connector) QueryPaymentIntent(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id := resolver.ID(attrs, "id", "payment_intent_id")
	if id == "" {
		list, err := c.list(ctx, "/payment_intents", entityPaymentIntent, mapPaymentIntent)
		if err != nil {
			return resolver.Fail(err)
		}
		return resolver.Many(list)
	}
	var out mapping.Object
	if err := c.client.Get(ctx, "/payment_intents/"+url.PathEscape(id), nil, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityPaymentIntent, mapPaymentIntent(out)))
}

func (c *Connector) UpdatePaymentIntent(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "payment_intent_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	var in paymentIntentInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	out, err := c.post(ctx, "/payment_intents/"+url.PathEscape(id), in.form(attrs), false)
	if err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityPaymentIntent, mapPaymentIntent(out)))
}

// CancelPaymentIntent is the delete verb: payment intents cannot be removed, only canceled.
func (c *Connector) CancelPaymentIntent(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "payment_intent_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	form := url.Values{}
	setForm(form, map[string]string{"cancellation_reason": attrs.String("cancellation_reason")})
	out, err := c.post(ctx, "/payment_intents/"+url.PathEscape(id)+"/cancel", form, false)
	if err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityPaymentIntent, mapPaymentIntent(out)))
}
