package github

import (
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v74/github"
	"github.com/open-sspm/resolvers/internal/instance"
)

func timestamp(t gh.Timestamp) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func mapIssue(repo Repo, issue *gh.Issue) instance.Attributes {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	assignees := make([]string, 0, len(issue.Assignees))
	for _, u := range issue.Assignees {
		assignees = append(assignees, u.GetLogin())
	}
	number := issue.GetNumber()
	return instance.Attributes{
		"id":         strconv.Itoa(number),
		"ref":        repo.String() + "#" + strconv.Itoa(number),
		"repo":       repo.String(),
		"node_id":    issue.GetNodeID(),
		"title":      issue.GetTitle(),
		"body":       issue.GetBody(),
		"state":      issue.GetState(),
		"labels":     strings.Join(labels, ","),
		"assignees":  strings.Join(assignees, ","),
		"author":     issue.GetUser().GetLogin(),
		"comments":   issue.GetComments(),
		"html_url":   issue.GetHTMLURL(),
		"created_at": timestamp(issue.GetCreatedAt()),
		"updated_at": timestamp(issue.GetUpdatedAt()),
		"closed_at":  timestamp(issue.GetClosedAt()),
	}
}

func mapRepository(r *gh.Repository) instance.Attributes {
	return instance.Attributes{
		"id":             strconv.FormatInt(r.GetID(), 10),
		"name":           r.GetName(),
		"full_name":      r.GetFullName(),
		"owner":          r.GetOwner().GetLogin(),
		"description":    r.GetDescription(),
		"private":        r.GetPrivate(),
		"archived":       r.GetArchived(),
		"visibility":     r.GetVisibility(),
		"default_branch": r.GetDefaultBranch(),
		"language":       r.GetLanguage(),
		"open_issues":    r.GetOpenIssuesCount(),
		"stars":          r.GetStargazersCount(),
		"html_url":       r.GetHTMLURL(),
		"created_at":     timestamp(r.GetCreatedAt()),
		"updated_at":     timestamp(r.GetUpdatedAt()),
		"pushed_at":      timestamp(r.GetPushedAt()),
	}
}
