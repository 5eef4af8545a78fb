package jira

import (
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/open-sspm/resolvers/internal/instance"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func mapIssue(issue *jira.Issue) instance.Attributes {
	attrs := instance.Attributes{
		"id":   issue.ID,
		"key":  issue.Key,
		"self": issue.Self,
	}
	f := issue.Fields
	if f == nil {
		return attrs
	}
	attrs["summary"] = f.Summary
	attrs["description"] = f.Description
	attrs["issue_type"] = f.Type.Name
	attrs["project_key"] = f.Project.Key
	attrs["labels"] = strings.Join(f.Labels, ",")
	attrs["created_at"] = formatTime(time.Time(f.Created))
	attrs["updated_at"] = formatTime(time.Time(f.Updated))

	attrs["status"] = ""
	if f.Status != nil {
		attrs["status"] = f.Status.Name
	}
	attrs["priority"] = ""
	if f.Priority != nil {
		attrs["priority"] = f.Priority.Name
	}
	attrs["assignee_id"], attrs["assignee_name"] = user(f.Assignee)
	attrs["reporter_id"], attrs["reporter_name"] = user(f.Reporter)
	return attrs
}

func user(u *jira.User) (string, string) {
	if u == nil {
		return "", ""
	}
	return u.AccountID, u.DisplayName
}

func mapProject(p *jira.Project) instance.Attributes {
	return instance.Attributes{
		"id":          p.ID,
		"key":         p.Key,
		"name":        p.Name,
		"description": p.Description,
		"lead_id":     p.Lead.AccountID,
		"category":    p.ProjectCategory.Name,
	}
}
