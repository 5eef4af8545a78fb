package zohoexpense

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
	entityExpense = "expense"
	entityReport  = "report"
)

type expenseInput struct {
	Date         string `attr:"date" validate:"omitempty,datetime=2006-01-02"`
	Amount       any    `attr:"amount"`
	CategoryID   string `attr:"category_id"`
	CurrencyCode string `attr:"currency_code" validate:"omitempty,len=3"`
	MerchantName string `attr:"merchant_name"`
	Description  string `attr:"description"`
	ReportID     string `attr:"report_id"`
	Reimbursable *bool  `attr:"is_reimbursable"`
}

func (in expenseInput) payload() (map[string]any, *resolver.Error) {
	body := mapping.Compact(map[string]any{
		"date":          in.Date,
		"category_id":   in.CategoryID,
		"currency_code": in.CurrencyCode,
		"merchant_name": in.MerchantName,
		"description":   in.Description,
		"report_id":     in.ReportID,
	})
	if resolver.Stringify(in.Amount) != "" {
		d, ok := mapping.Decimal(in.Amount)
		if !ok {
			return nil, resolver.Validationf("invalid attributes: amount (numeric)")
		}
		body["amount"] = d.InexactFloat64()
	}
	if in.Reimbursable != nil {
		body["is_reimbursable"] = *in.Reimbursable
	}
	return body, nil
}

func (c *Connector) CreateExpense(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "date", "amount", "category_id"); err != nil {
		return resolver.Fail(err)
	}
	return c.writeExpense(ctx, http.MethodPost, "/expenses", attrs)
}

func (c *Connector) QueryExpense(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if id := resolver.ID(attrs, "id", "expense_id"); id != "" {
		var out struct {
			Expense mapping.Object `json:"expense"`
		}
		if err := c.client.Get(ctx, "/expenses/"+url.PathEscape(id), nil, &out); err != nil {
			return resolver.Fail(err)
		}
		return resolver.One(instance.Make(Kind, entityExpense, mapExpense(out.Expense)))
	}
	list, err := c.listExpenses(ctx)
	if err != nil {
		return resolver.Fail(err)
	}
	return resolver.Many(list)
}

func (c *Connector) UpdateExpense(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "expense_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	return c.writeExpense(ctx, http.MethodPut, "/expenses/"+url.PathEscape(id), attrs)
}

func (c *Connector) DeleteExpense(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "expense_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	if _, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: "/expenses/" + url.PathEscape(id)}); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, entityExpense, id)
}

// writeExpense handles both response shapes Zoho uses for expense writes:
// {"expense": {...}} and {"expenses": [{...}]}.
func (c *Connector) writeExpense(ctx context.Context, method, path string, attrs instance.Attributes) resolver.Result {
	var in expenseInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	body, verr := in.payload()
	if verr != nil {
		return resolver.Fail(verr)
	}
	var out struct {
		Expense  mapping.Object   `json:"expense"`
		Expenses []mapping.Object `json:"expenses"`
	}
	if err := c.client.JSON(ctx, method, path, nil, body, &out); err != nil {
		return resolver.Fail(err)
	}
	exp := out.Expense
	if exp == nil && len(out.Expenses) > 0 {
		exp = out.Expenses[0]
	}
	if exp == nil {
		return resolver.Fail(resolver.Vendorf("", "zoho expense: response has no expense"))
	}
	return resolver.One(instance.Make(Kind, entityExpense, mapExpense(exp)))
}

func (c *Connector) listExpenses(ctx context.Context) ([]instance.Instance, error) {
	var out struct {
		Expenses []mapping.Object `json:"expenses"`
	}
	if err := c.client.Get(ctx, "/expenses", url.Values{"per_page": {strconv.Itoa(pageSize)}}, &out); err != nil {
		return nil, err
	}
	return mapping.Instances(Kind, entityExpense, out.Expenses, pageSize, mapExpense), nil
}

type reportInput struct {
	Name        string `attr:"report_name"`
	Description string `attr:"description"`
	StartDate   string `attr:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string `attr:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

func (in reportInput) payload() map[string]any {
	return mapping.Compact(map[string]any{
		"report_name": in.Name,
		"description": in.Description,
		"start_date":  in.StartDate,
		"end_date":    in.EndDate,
	})
}

type reportEnvelope struct {
	Report mapping.Object `json:"expense_report"`
}

func (c *Connector) CreateReport(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "report_name"); err != nil {
		return resolver.Fail(err)
	}
	var in reportInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	var out reportEnvelope
	if err := c.client.JSON(ctx, http.MethodPost, "/expensereports", nil, in.payload(), &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityReport, mapReport(out.Report)))
}

func (c *Connector) QueryReport(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if id := resolver.ID(attrs, "id", "report_id"); id != "" {
		var out reportEnvelope
		if err := c.client.Get(ctx, "/expensereports/"+url.PathEscape(id), nil, &out); err != nil {
			return resolver.Fail(err)
		}
		return resolver.One(instance.Make(Kind, entityReport, mapReport(out.Report)))
	}
	var out struct {
		Reports []mapping.Object `json:"expense_reports"`
	}
	if err := c.client.Get(ctx, "/expensereports", url.Values{"per_page": {strconv.Itoa(pageSize)}}, &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Many(mapping.Instances(Kind, entityReport, out.Reports, pageSize, mapReport))
}

func (c *Connector) UpdateReport(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "report_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	var in reportInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	var out reportEnvelope
	if err := c.client.JSON(ctx, http.MethodPut, "/expensereports/"+url.PathEscape(id), nil, in.payload(), &out); err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityReport, mapReport(out.Report)))
}

func (c *Connector) DeleteReport(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "report_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	if _, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: "/expensereports/" + url.PathEscape(id)}); err != nil {
		return resolver.Fail(err)
	}
	return resolver.Deleted(Kind, entityReport, id)
}
