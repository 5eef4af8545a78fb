package stripe

import (
	"strings"

	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
)

func mapCustomer(c mapping.Object) instance.Attributes {
	return instance.Attributes{
		"id":          mapping.Str(c, "id"),
		"email":       mapping.Str(c, "email"),
		"name":        mapping.Str(c, "name"),
		"phone":       mapping.Str(c, "phone"),
		"description": mapping.Str(c, "description"),
		"balance":     mapping.MinorUnits(c, "balance"),
		"currency":    strings.ToUpper(mapping.Str(c, "currency")),
		"delinquent":  mapping.Bool(c, "delinquent"),
		"livemode":    mapping.Bool(c, "livemode"),
		"created_at":  mapping.Unix(c, "created"),
	}
}

func mapPaymentIntent(p mapping.Object) instance.Attributes {
	return instance.Attributes{
		"id":                  mapping.Str(p, "id"),
		"amount":              mapping.MinorUnits(p, "amount"),
		"amount_received":     mapping.MinorUnits(p, "amount_received"),
		"currency":            strings.ToUpper(mapping.Str(p, "currency")),
		"status":              mapping.Str(p, "status"),
		"customer_id":         mapping.Str(p, "customer"),
		"description":         mapping.Str(p, "description"),
		"receipt_email":       mapping.Str(p, "receipt_email"),
		"cancellation_reason": mapping.Str(p, "cancellation_reason"),
		"livemode":            mapping.Bool(p, "livemode"),
		"created_at":          mapping.Unix(p, "created"),
	}
}
