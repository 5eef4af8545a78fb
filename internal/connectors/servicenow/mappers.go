package servicenow

import (
	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
)

// ref reads a reference field that may still carry {"link","value"}.
func ref(m mapping.Object, key string) string {
	if v, ok := m[key].(map[string]any); ok {
		return mapping.Str(v, "value")
	}
	return mapping.Str(m, key)
}

func mapIncident(m mapping.Object) instance.Attributes {
	return instance.Attributes{
		"id":                mapping.Str(m, "sys_id"),
		"number":            mapping.Str(m, "number"),
		"short_description": mapping.Str(m, "short_description"),
		"description":       mapping.Str(m, "description"),
		"state":             mapping.Str(m, "state"),
		"priority":          mapping.Str(m, "priority"),
		"urgency":           mapping.Str(m, "urgency"),
		"impact":            mapping.Str(m, "impact"),
		"category":          mapping.Str(m, "category"),
		"caller_id":         ref(m, "caller_id"),
		"assigned_to":       ref(m, "assigned_to"),
		"assignment_group":  ref(m, "assignment_group"),
		"opened_at":         mapping.Str(m, "opened_at"),
		"resolved_at":       mapping.Str(m, "resolved_at"),
		"created_at":        mapping.Str(m, "sys_created_on"),
		"updated_at":        mapping.Str(m, "sys_updated_on"),
	}
}

func mapUser(m mapping.Object) instance.Attributes {
	return instance.Attributes{
		"id":         mapping.Str(m, "sys_id"),
		"user_name":  mapping.Str(m, "user_name"),
		"first_name": mapping.Str(m, "first_name"),
		"last_name":  mapping.Str(m, "last_name"),
		"email":      mapping.Str(m, "email"),
		"title":      mapping.Str(m, "title"),
		"department": ref(m, "department"),
		"phone":      mapping.Str(m, "phone"),
		"active":     mapping.Bool(m, "active"),
		"created_at": mapping.Str(m, "sys_created_on"),
		"updated_at": mapping.Str(m, "sys_updated_on"),
	}
}
