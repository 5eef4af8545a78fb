package teams

import (
	"github.com/open-sspm/resolvers/internal/connectors/mapping"
	"github.com/open-sspm/resolvers/internal/instance"
)

func mapTeam(t mapping.Object) instance.Attributes {
	return instance.Attributes{
		"id":           mapping.Str(t, "id"),
		"display_name": mapping.Str(t, "displayName"),
		"description":  mapping.Str(t, "description"),
		"visibility":   mapping.Str(t, "visibility"),
		"web_url":      mapping.Str(t, "webUrl"),
		"is_archived":  mapping.Bool(t, "isArchived"),
		"created_at":   mapping.Str(t, "createdDateTime"),
	}
}

// mapChannel tags channels with the team they were read from.
func mapChannel(team string) func(mapping.Object) instance.Attributes {
	return func(ch mapping.Object) instance.Attributes {
		return instance.Attributes{
			"id":              mapping.Str(ch, "id"),
			"team_id":         team,
			"display_name":    mapping.Str(ch, "displayName"),
			"description":     mapping.Str(ch, "description"),
			"email":           mapping.Str(ch, "email"),
			"membership_type": mapping.Str(ch, "membershipType"),
			"web_url":         mapping.Str(ch, "webUrl"),
			"created_at":      mapping.Str(ch, "createdDateTime"),
		}
	}
}

func mapMessage(m mapping.Object) instance.Attributes {
	return instance.Attributes{
		"id":           mapping.Str(m, "id"),
		"team_id":      mapping.Str(m, "channelIdentity", "teamId"),
		"channel_id":   mapping.Str(m, "channelIdentity", "channelId"),
		"subject":      mapping.Str(m, "subject"),
		"content":      mapping.Str(m, "body", "content"),
		"content_type": mapping.Str(m, "body", "contentType"),
		"importance":   mapping.Str(m, "importance"),
		"from":         mapping.Str(m, "from", "user", "displayName"),
		"from_id":      mapping.Str(m, "from", "user", "id"),
		"web_url":      mapping.Str(m, "webUrl"),
		"created_at":   mapping.Str(m, "createdDateTime"),
	}
}
