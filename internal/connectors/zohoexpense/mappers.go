package zohoexpense

import (
	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
)

func mapExpense(e mapping.Object) instance.Attributes {
	amount := mapping.Amount(e, "total")
	if amount == nil {
		amount = mapping.Amount(e, "amount")
	}
	return instance.Attributes{
		"id":              mapping.Str(e, "expense_id"),
		"date":            mapping.Str(e, "date"),
		"amount":          amount,
		"currency_code":   mapping.Str(e, "currency_code"),
		"merchant_name":   mapping.Str(e, "merchant_name"),
		"category_id":     mapping.Str(e, "category_id"),
		"category_name":   mapping.Str(e, "category_name"),
		"description":     mapping.Str(e, "description"),
		"status":          mapping.Str(e, "status"),
		"report_id":       mapping.Str(e, "report_id"),
		"is_reimbursable": mapping.Bool(e, "is_reimbursable"),
		"created_time":    mapping.Str(e, "created_time"),
	}
}

func mapReport(r mapping.Object) instance.Attributes {
	return instance.Attributes{
		"id":             mapping.Str(r, "report_id"),
		"report_name":    mapping.Str(r, "report_name"),
		"report_number":  mapping.Str(r, "report_number"),
		"description":    mapping.Str(r, "description"),
		"status":         mapping.Str(r, "status"),
		"start_date":     mapping.Str(r, "start_date"),
		"end_date":       mapping.Str(r, "end_date"),
		"total":          mapping.Amount(r, "total"),
		"currency_code":  mapping.Str(r, "currency_code"),
		"submitted_date": mapping.Str(r, "submitted_date"),
	}
}
