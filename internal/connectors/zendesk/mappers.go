package zendesk

import (
	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
)

func mapTicket(t mapping.Object) instance.Attributes {
	return instance.Attributes{
		"id":              mapping.Str(t, "id"),
		"subject":         mapping.Str(t, "subject"),
		"description":     mapping.Str(t, "description"),
		"status":          mapping.Str(t, "status"),
		"priority":        mapping.Str(t, "priority"),
		"type":            mapping.Str(t, "type"),
		"tags":            mapping.Join(t, ",", "tags"),
		"requester_id":    mapping.Str(t, "requester_id"),
		"assignee_id":     mapping.Str(t, "assignee_id"),
		"organization_id": mapping.Str(t, "organization_id"),
		"url":             mapping.Str(t, "url"),
		"created_at":      mapping.Str(t, "created_at"),
		"updated_at":      mapping.Str(t, "updated_at"),
	}
}

func mapUser(u mapping.Object) instance.Attributes {
	return instance.Attributes{
		"id":              mapping.Str(u, "id"),
		"name":            mapping.Str(u, "name"),
		"email":           mapping.Str(u, "email"),
		"role":            mapping.Str(u, "role"),
		"phone":           mapping.Str(u, "phone"),
		"organization_id": mapping.Str(u, "organization_id"),
		"active":          mapping.Bool(u, "active"),
		"suspended":       mapping.Bool(u, "suspended"),
		"time_zone":       mapping.Str(u, "time_zone"),
		"created_at":      mapping.Str(u, "created_at"),
		"updated_at":      mapping.Str(u, "updated_at"),
	}
}
