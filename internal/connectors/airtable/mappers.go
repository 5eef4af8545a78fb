package airtable

import (
	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
)

// mapRecord keeps the raw fields object and also flattens each field under
// its snake_case name. Flattened names never shadow id or created_time.
func mapRecord(r mapping.Object) instance.Attributes {
	attrs := instance.Attributes{
		"id":           mapping.Str(r, "id"),
		"created_time": mapping.Str(r, "createdTime"),
	}
	fields, _ := mapping.Get(r, "fields").(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}
	attrs["fields"] = fields
	for name, v := range fields {
		key := mapping.Snake(name)
		if key == "" {
			continue
		}
		if _, taken := attrs[key]; taken {
			continue
		}
		attrs[key] = v
	}
	return attrs
}
