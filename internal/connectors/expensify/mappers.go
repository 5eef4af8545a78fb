package expensify

import (
	"strings"

	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
)

func mapExpense(e mapping.Object) instance.Attributes {
	return instance.Attributes{
		"id":        mapping.First(e, "transactionID", "transactionId"),
		"merchant":  mapping.Str(e, "merchant"),
		"amount":    mapping.MinorUnits(e, "amount"),
		"currency":  strings.ToUpper(mapping.Str(e, "currency")),
		"created":   mapping.Str(e, "created"),
		"category":  mapping.Str(e, "category"),
		"comment":   mapping.Str(e, "comment"),
		"tag":       mapping.Str(e, "tag"),
		"report_id": mapping.Str(e, "reportID"),
	}
}

func mapPolicy(p mapping.Object) instance.Attributes {
	employees := 0
	if list, ok := p["employees"].([]any); ok {
		employees = len(list)
	}
	return instance.Attributes{
		"id":              mapping.Str(p, "id"),
		"name":            mapping.Str(p, "name"),
		"type":            mapping.Str(p, "type"),
		"role":            mapping.Str(p, "role"),
		"owner":           mapping.Str(p, "owner"),
		"output_currency": mapping.Str(p, "outputCurrency"),
		"employee_count":  employees,
	}
}
