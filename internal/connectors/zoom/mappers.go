package zoom

import (
	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
)

func mapMeeting(m mapping.Object) instance.Attributes {
	return instance.Attributes{
		"id":         mapping.Str(m, "id"),
		"uuid":       mapping.Str(m, "uuid"),
		"topic":      mapping.Str(m, "topic"),
		"type":       mapping.Int(m, "type"),
		"status":     mapping.Str(m, "status"),
		"start_time": mapping.Str(m, "start_time"),
		"duration":   mapping.Int(m, "duration"),
		"timezone":   mapping.Str(m, "timezone"),
		"agenda":     mapping.Str(m, "agenda"),
		"join_url":   mapping.Str(m, "join_url"),
		"host_id":    mapping.Str(m, "host_id"),
		"created_at": mapping.Str(m, "created_at"),
	}
}

func mapUser(u mapping.Object) instance.Attributes {
	return instance.Attributes{
		"id":              mapping.Str(u, "id"),
		"email":           mapping.Str(u, "email"),
		"first_name":      mapping.Str(u, "first_name"),
		"last_name":       mapping.Str(u, "last_name"),
		"type":            mapping.Int(u, "type"),
		"status":          mapping.Str(u, "status"),
		"role_id":         mapping.Str(u, "role_id"),
		"dept":            mapping.Str(u, "dept"),
		"timezone":        mapping.Str(u, "timezone"),
		"created_at":      mapping.Str(u, "created_at"),
		"last_login_time": mapping.Str(u, "last_login_time"),
	}
}
