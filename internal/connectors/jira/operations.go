package jira

import (
	"context"

	jira "github.com/andygrunwald/go-jira"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
)

const (
	entityIssue   = "issue"
	entityProject = "project"
)

type issueInput struct {
	Summary     string   `attr:"summary"`
	Description string   `attr:"description"`
	ProjectKey  string   `attr:"project_key"`
	IssueType   string   `attr:"issue_type"`
	Priority    string   `attr:"priority"`
	AssigneeID  string   `attr:"assignee_id"`
	Labels      []string `attr:"labels"`
}

// fields renders the inputs that are set as an issue update document.
func (in issueInput) fields() map[string]any {
	out := map[string]any{}
	if in.Summary != "" {
		out["summary"] = in.Summary
	}
	if in.Description != "" {
		out["description"] = in.Description
	}
	if in.Priority != "" {
		out["priority"] = map[string]any{"name": in.Priority}
	}
	if in.AssigneeID != "" {
		out["assignee"] = map[string]any{"accountId": in.AssigneeID}
	}
	if len(in.Labels) > 0 {
		out["labels"] = in.Labels
	}
	return out
}

func (c *Connector) CreateIssue(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "summary"); err != nil {
		return resolver.Fail(err)
	}
	var in issueInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	if in.ProjectKey == "" {
		in.ProjectKey = c.projectKey
	}
	if in.ProjectKey == "" {
		return resolver.Fail(resolver.Validationf("missing required field(s): project_key (or set %s)", envProjectKey))
	}
	if in.IssueType == "" {
		in.IssueType = defaultIssueType
	}
	if c.configErr != nil {
		return resolver.Fail(c.configErr)
	}

	issue := &jira.Issue{Fields: &jira.IssueFields{
		Project:     jira.Project{Key: in.ProjectKey},
		Type:        jira.IssueType{Name: in.IssueType},
		Summary:     in.Summary,
		Description: in.Description,
		Labels:      in.Labels,
	}}
	if in.Priority != "" {
		issue.Fields.Priority = &jira.Priority{Name: in.Priority}
	}
	if in.AssigneeID != "" {
		issue.Fields.Assignee = &jira.User{AccountID: in.AssigneeID}
	}

	created, resp, err := c.api.Issue.CreateWithContext(ctx, issue)
	if err != nil {
		return resolver.Fail(apiError("jira create issue", resp, err))
	}
	// The create response carries only id, key and self.
	return c.getIssue(ctx, created.Key)
}

func (c *Connector) QueryIssue(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if c.configErr != nil {
		return resolver.Fail(c.configErr)
	}
	if id := resolver.ID(attrs, "id", "key", "issue_key"); id != "" {
		return c.getIssue(ctx, id)
	}
	list, err := c.searchIssues(ctx)
	if err != nil {
		return resolver.Fail(err)
	}
	return resolver.Many(list)
}

func (c *Connector) UpdateIssue(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "key", "issue_key")
	if verr != nil {
		return resolver.Fail(verr)
	}
	var in issueInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	if c.configErr != nil {
		return resolver.Fail(c.configErr)
	}
	if fields := in.fields(); len(fields) > 0 {
		resp, err := c.api.Issue.UpdateIssueWithContext(ctx, id, map[string]any{"fields": fields})
		if err != nil {
			return resolver.Fail(apiError("jira update issue "+id, resp, err))
		}
	}
	return c.getIssue(ctx, id)
}

func (c *Connector) DeleteIssue(ctx context.Context, attrs instance.Attributes) resolver.Result {
	id, verr := resolver.RequireID(attrs, "id", "key", "issue_key")
	if verr != nil {
		return resolver.Fail(verr)
	}
	if c.configErr != nil {
		return resolver.Fail(c.configErr)
	}
	if resp, err := c.api.Issue.DeleteWithContext(ctx, id); err != nil {
		return resolver.Fail(apiError("jira delete issue "+id, resp, err))
	}
	return resolver.Deleted(Kind, entityIssue, id)
}

func (c *Connector) getIssue(ctx context.Context, id string) resolver.Result {
	issue, resp, err := c.api.Issue.GetWithContext(ctx, id, nil)
	if err != nil {
		return resolver.Fail(apiError("jira get issue "+id, resp, err))
	}
	return resolver.One(instance.Make(Kind, entityIssue, mapIssue(issue)))
}

func (c *Connector) searchIssues(ctx context.Context) ([]instance.Instance, error) {
	if c.configErr != nil {
		return nil, c.configErr
	}
	issues, resp, err := c.api.Issue.SearchWithContext(ctx, c.jql, &jira.SearchOptions{MaxResults: pageSize})
	if err != nil {
		return nil, apiError("jira search issues", resp, err)
	}
	if len(issues) > pageSize {
		issues = issues[:pageSize]
	}
	out := make([]instance.Instance, 0, len(issues))
	for i := range issues {
		out = append(out, instance.Make(Kind, entityIssue, mapIssue(&issues[i])))
	}
	return out, nil
}

func (c *Connector) QueryProject(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if c.configErr != nil {
		return resolver.Fail(c.configErr)
	}
	if id := resolver.ID(attrs, "id", "key", "project_key"); id != "" {
		p, resp, err := c.api.Project.GetWithContext(ctx, id)
		if err != nil {
			return resolver.Fail(apiError("jira get project "+id, resp, err))
		}
		return resolver.One(instance.Make(Kind, entityProject, mapProject(p)))
	}
	list, resp, err := c.api.Project.GetListWithContext(ctx)
	if err != nil {
		return resolver.Fail(apiError("jira list projects", resp, err))
	}
	out := make([]instance.Instance, 0, len(*list))
	for _, p := range *list {
		if len(out) == pageSize {
			break
		}
		out = append(out, instance.Make(Kind, entityProject, instance.Attributes{
			"id":               p.ID,
			"key":              p.Key,
			"name":             p.Name,
			"project_type_key": p.ProjectTypeKey,
			"category":         p.ProjectCategory.Name,
		}))
	}
	return resolver.Many(out)
}
