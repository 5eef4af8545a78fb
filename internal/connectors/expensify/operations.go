package expensify

import (
	"context"
	"strings"

	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
)

const (
	entityExpense = "expense"
	entityReport  = "report"
	entityPolicy  = "policy"

	defaultCurrency  = "USD"
	statusReimbursed = "REIMBURSED"
)

var policyFields = []string{"name", "outputCurrency", "owner", "employees", "type", "role"}

type expenseInput struct {
	Merchant string `attr:"merchant"`
	Amount   any    `attr:"amount"`
	Created  string `attr:"created" validate:"omitempty,datetime=2006-01-02"`
	Currency string `attr:"currency" validate:"omitempty,len=3"`
	Category string `attr:"category"`
	Comment  string `attr:"comment"`
	Tag      string `attr:"tag"`
	ReportID string `attr:"report_id"`
	Email    string `attr:"employee_email" validate:"omitempty,email"`
}

// transaction renders the expense in Expensify's transactionList shape.
// Amounts are sent in cents.
func (in expenseInput) transaction() (map[string]any, *resolver.Error) {
	cents, ok := mapping.ToMinorUnits(in.Amount)
	if !ok {
		return nil, resolver.Validationf("invalid attributes: amount (numeric)")
	}
	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = defaultCurrency
	}
	return mapping.Compact(map[string]any{
		"merchant": in.Merchant,
		"amount":   cents,
		"created":  in.Created,
		"currency": currency,
		"category": in.Category,
		"comment":  in.Comment,
		"tag":      in.Tag,
		"reportID": mapping.NumericID(in.ReportID),
	}), nil
}

func (c *Connector) email(in string) (string, *resolver.Error) {
	if in != "" {
		return in, nil
	}
	if c.employeeEmail != "" {
		return c.employeeEmail, nil
	}
	return "", resolver.Validationf("missing required field(s): employee_email (or set %s)", envEmployeeEmail)
}

func (c *Connector) CreateExpense(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "merchant", "amount", "created"); err != nil {
		return resolver.Fail(err)
	}
	var in expenseInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	email, verr := c.email(in.Email)
	if verr != nil {
		return resolver.Fail(verr)
	}
	tx, verr := in.transaction()
	if verr != nil {
		return resolver.Fail(verr)
	}

	out, err := c.job(ctx, "create", map[string]any{
		"type":            "expenses",
		"employeeEmail":   email,
		"transactionList": []map[string]any{tx},
	})
	if err != nil {
		return resolver.Fail(err)
	}

	// The response echoes the created transactions with their new ids.
	created := mapping.Objects(out["transactionList"])
	attrsOut := mapExpense(tx)
	if len(created) > 0 {
		attrsOut["id"] = mapping.First(created[0], "transactionID", "transactionId")
	}
	attrsOut["employee_email"] = email
	return resolver.One(instance.Make(Kind, entityExpense, attrsOut))
}

type reportInput struct {
	Title    string `attr:"title"`
	PolicyID string `attr:"policy_id"`
	Email    string `attr:"employee_email" validate:"omitempty,email"`
}

func (c *Connector) CreateReport(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "title"); err != nil {
		return resolver.Fail(err)
	}
	var in reportInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	email, verr := c.email(in.Email)
	if verr != nil {
		return resolver.Fail(verr)
	}
	policy := in.PolicyID
	if policy == "" {
		policy = c.policyID
	}
	if policy == "" {
		return resolver.Fail(resolver.Validationf("missing required field(s): policy_id (or set %s)", envPolicyID))
	}

	out, err := c.job(ctx, "create", map[string]any{
		"type":          "report",
		"policyID":      policy,
		"employeeEmail": email,
		"report":        map[string]any{"title": in.Title},
		"expenses":      []any{},
	})
	if err != nil {
		return resolver.Fail(err)
	}
	return resolver.One(instance.Make(Kind, entityReport, instance.Attributes{
		"id":             mapping.Str(out, "reportID"),
		"title":          mapping.First(out, "reportName", "title"),
		"policy_id":      policy,
		"employee_email": email,
		"status":         "OPEN",
	}))
}


// UpdateReportStatus moves reports to a new status. Expensify only accepts
// REIMBURSED and skips reports not in an approved state.
func (c *Connector) UpdateReportStatus(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "report_id")
	if verr != nil {
		return resolver.Fail(verr)
	}
	status := strings.ToUpper(resolver.Stringify(attrs["status"]))
	if status != statusReimbursed {
		return resolver.Fail(resolver.Validationf("invalid attributes: status (must be %s)", statusReimbursed))
	}

	out, err := c.job(ctx, "update", map[string]any{
		"type":    "reportStatus",
		"status":  status,
		"filters": map[string]any{"reportIDList": id},
	})
	if err != nil {
		return resolver.Fail(err)
	}
	for _, skipped := range mapping.Objects(out["skippedReports"]) {
		if mapping.Str(skipped, "reportID") == id {
			return resolver.Fail(resolver.Vendorf("", "expensify skipped report %s: %s", id, mapping.Str(skipped, "reason")))
		}
	}
	return resolver.One(instance.Make(Kind, entityReport, instance.Attributes{
		"id":     id,
		"status": status,
	}))
}

func (c *Connector) QueryPolicy(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id := resolver.ID(attrs, "id", "policy_id")
	if id == "" {
		list, err := c.listPolicies(ctx)
		if err != nil {
			return resolver.Fail(err)
		}
		return resolver.Many(list)
	}

	out, err := c.job(ctx, "get", map[string]any{
		"type":         "policy",
		"fields":       policyFields,
		"policyIDList": []string{id},
	})
	if err != nil {
		return resolver.Fail(err)
	}
	info, ok := mapping.Get(out, "policyInfo", id).(map[string]any)
	if !ok {
		return resolver.Fail(resolver.Vendorf(resolver.CodeNotFound, "expensify policy %s not found", id))
	}
	info["id"] = id
	return resolver.One(instance.Make(Kind, entityPolicy, mapPolicy(info)))
}

func (c *Connector) listPolicies(ctx context.Context) ([]instance.Instance, error) {
	out, err := c.job(ctx, "get", map[string]any{
		"type":      "policyList",
		"adminOnly": false,
	})
	if err != nil {
		return nil, err
	}
	return mapping.Instances(Kind, entityPolicy, mapping.Objects(out["policyList"]), 0, mapPolicy), nil
}
