package freshdesk

import (
	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
)

var (
	statusNames   = map[int64]string{2: "Open", 3: "Pending", 4: "Resolved", 5: "Closed"}
	priorityNames = map[int64]string{1: "Low", 2: "Medium", 3: "High", 4: "Urgent"}
)

func label(names map[int64]string, v any) string {
	n, ok := v.(int64)
	if !ok {
		return ""
	}
	return names[n]
}

func mapTicket(t mapping.Object) instance.Attributes {
	status := mapping.Int(t, "status")
	priority := mapping.Int(t, "priority")
	return instance.Attributes{
		"id":            mapping.Str(t, "id"),
		"subject":       mapping.Str(t, "subject"),
		"description":   mapping.First(t, "description_text", "description"),
		"status":        status,
		"status_name":   label(statusNames, status),
		"priority":      priority,
		"priority_name": label(priorityNames, priority),
		"type":          mapping.Str(t, "type"),
		"source":        mapping.Int(t, "source"),
		"tags":          mapping.Join(t, ",", "tags"),
		"requester_id":  mapping.Str(t, "requester_id"),
		"responder_id":  mapping.Str(t, "responder_id"),
		"company_id":    mapping.Str(t, "company_id"),
		"due_by":        mapping.Str(t, "due_by"),
		"created_at":    mapping.Str(t, "created_at"),
		"updated_at":    mapping.Str(t, "updated_at"),
	}
}

func mapContact(c mapping.Object) instance.Attributes {
	return instance.Attributes{
		"id":         mapping.Str(c, "id"),
		"name":       mapping.Str(c, "name"),
		"email":      mapping.Str(c, "email"),
		"phone":      mapping.Str(c, "phone"),
		"mobile":     mapping.Str(c, "mobile"),
		"company_id": mapping.Str(c, "company_id"),
		"job_title":  mapping.Str(c, "job_title"),
		"active":     mapping.Bool(c, "active"),
		"created_at": mapping.Str(c, "created_at"),
		"updated_at": mapping.Str(c, "updated_at"),
	}
}
