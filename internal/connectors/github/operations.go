package github

import (
	"context"
	"errors"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v74/github"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/resolver"
)

const (
	entityIssue      = "issue"
	entityRepository = "repository"
)

type issueInput struct {
	Repo      string   `attr:"repo"`
	Title     string   `attr:"title"`
	Body      string   `attr:"body"`
	State     string   `attr:"state" validate:"omitempty,oneof=open closed"`
	Labels    []string `attr:"labels"`
	Assignees []string `attr:"assignees"`
	Milestone int      `attr:"milestone" validate:"omitempty,min=1"`
}

func (in issueInput) request() *gh.IssueRequest {
	req := &gh.IssueRequest{}
	if in.Title != "" {
		req.Title = gh.Ptr(in.Title)
	}
	if in.Body != "" {
		req.Body = gh.Ptr(in.Body)
	}
	if in.State != "" {
		req.State = gh.Ptr(in.State)
	}
	if len(in.Labels) > 0 {
		req.Labels = &in.Labels
	}
	if len(in.Assignees) > 0 {
		req.Assignees = &in.Assignees
	}
	if in.Milestone > 0 {
		req.Milestone = gh.Ptr(in.Milestone)
	}
	return req
}

// repoFor resolves the target repository: the repo attribute, then the
// repository part of an "owner/name#number" id, then the single configured repo.
func (c *Connector) repoFor(attrs instance.Attributes, ref string) (Repo, *resolver.Error) {
	if raw := resolver.Stringify(attrs["repo"]); raw != "" {
		if r, ok := ParseRepo(raw, c.cfg.Owner); ok {
			return r, nil
		}
		return Repo{}, resolver.Validationf("invalid attributes: repo (want owner/name, got %q)", raw)
	}
	if name, _, ok := strings.Cut(ref, "#"); ok {
		if r, ok := ParseRepo(name, c.cfg.Owner); ok {
			return r, nil
		}
	}
	if len(c.cfg.Repos) == 1 {
		return c.cfg.Repos[0], nil
	}
	return Repo{}, resolver.Validationf("missing required field(s): repo (or set a single repository in %s)", envRepos)
}

// issueNumber accepts "12" or "owner/name#12".
func issueNumber(ref string) (int, *resolver.Error) {
	if _, num, ok := strings.Cut(ref, "#"); ok {
		ref = num
	}
	n, err := strconv.Atoi(strings.TrimSpace(ref))
	if err != nil || n <= 0 {
		return 0, resolver.Validationf("invalid attributes: id (issue number, got %q)", ref)
	}
	return n, nil
}

func (c *Connector) CreateIssue(ctx context.Context, attrs instance.Attributes) resolver.Result {
	if err := resolver.Require(attrs, "title"); err != nil {
		return resolver.Fail(err)
	}
	var in issueInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	repo, verr := c.repoFor(attrs, "")
	if verr != nil {
		return resolver.Fail(verr)
	}
	issue, _, err := c.api.Issues.Create(ctx, repo.Owner, repo.Name, in.request())
	if err != nil {
		return resolver.Fail(apiError("github create issue in "+repo.String(), err))
	}
	return resolver.One(instance.Make(Kind, entityIssue, mapIssue(repo, issue)))
}

func (c *Connector) QueryIssue(ctx context.Context, attrs instance.Attributes) resolver.Result {
	ref := resolver.ID(attrs, "id", "number", "issue_number")
	if ref == "" {
		var repos []Repo
		if raw := resolver.Stringify(attrs["repo"]); raw != "" {
			repo, verr := c.repoFor(attrs, "")
			if verr != nil {
				return resolver.Fail(verr)
			}
			repos = []Repo{repo}
		} else {
			repos = c.cfg.Repos
		}
		list, err := c.listIssues(ctx, repos, pageSize)
		if err != nil {
			return resolver.Fail(err)
		}
		return resolver.Many(list)
	}

	repo, verr := c.repoFor(attrs, ref)
	if verr != nil {
		return resolver.Fail(verr)
	}
	n, verr := issueNumber(ref)
	if verr != nil {
		return resolver.Fail(verr)
	}
	issue, _, err := c.api.Issues.Get(ctx, repo.Owner, repo.Name, n)
	if err != nil {
		return resolver.Fail(apiError("github get issue "+repo.String()+"#"+strconv.Itoa(n), err))
	}
	return resolver.One(instance.Make(Kind, entityIssue, mapIssue(repo, issue)))
}

func (c *Connector) UpdateIssue(ctx context.Context, attrs instance.Attributes) resolver.Result {
	ref, verr := resolver.RequireID(attrs, "id", "number", "issue_number")
	if verr != nil {
		return resolver.Fail(verr)
	}
	var in issueInput
	if err := resolver.Bind(attrs, &in); err != nil {
		return resolver.Fail(err)
	}
	return c.edit(ctx, attrs, ref, in.request())
}

// CloseIssue is the delete verb: GitHub issues cannot be deleted through the
// REST API, so they are closed instead.
func (c *Connector) CloseIssue(ctx context.Context, attrs instance.Attributes) resolver.Result {
	ref, verr := resolver.RequireID(attrs, "id", "number", "issue_number")
	if verr != nil {
		return resolver.Fail(verr)
	}
	res := c.edit(ctx, attrs, ref, &gh.IssueRequest{State: gh.Ptr("closed")})
	if res.IsError() {
		return res
	}
	return resolver.Deleted(Kind, entityIssue, ref)
}

func (c *Connector) edit(ctx context.Context, attrs instance.Attributes, ref string, req *gh.IssueRequest) resolver.Result {
	repo, verr := c.repoFor(attrs, ref)
	if verr != nil {
		return resolver.Fail(verr)
	}
	n, verr := issueNumber(ref)
	if verr != nil {
		return resolver.Fail(verr)
	}
	issue, _, err := c.api.Issues.Edit(ctx, repo.Owner, repo.Name, n, req)
	if err != nil {
		return resolver.Fail(apiError("github edit issue "+repo.String()+"#"+strconv.Itoa(n), err))
	}
	return resolver.One(instance.Make(Kind, entityIssue, mapIssue(repo, issue)))
}

// listIssues lists open issues (pull requests excluded) across repos, up to
// limit in total when limit is positive. A repository that fails is logged
// and skipped; the pass fails only when every repository failed.
func (c *Connector) listIssues(ctx context.Context, repos []Repo, limit int) ([]instance.Instance, error) {
	if len(repos) == 0 {
		return nil, resolver.Configf("github: no repositories configured: set %s", envRepos)
	}
	var out []instance.Instance
	var errs []error
	for _, repo := range repos {
		issues, _, err := c.api.Issues.ListByRepo(ctx, repo.Owner, repo.Name, &gh.IssueListByRepoOptions{
			ListOptions: gh.ListOptions{PerPage: pageSize},
		})
		if err != nil {
			mapped := apiError("github list issues in "+repo.String(), err)
			c.logger.Warn("skipping repository", "repo", repo.String(), "err", mapped)
			errs = append(errs, mapped)
			continue
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			out = append(out, instance.Make(Kind, entityIssue, mapIssue(repo, issue)))
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}
	}
	if len(errs) == len(repos) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (c *Connector) QueryRepository(ctx context.Context, attrs instance.Attributes) resolver.Result {
	raw := resolver.Stringify(attrs["repo"])
	if raw == "" {
		raw = resolver.Stringify(attrs["full_name"])
	}
	if raw == "" {
		raw = resolver.PathValue(attrs)
	}
	if raw != "" {
		repo, ok := ParseRepo(raw, c.cfg.Owner)
		if !ok {
			return resolver.Fail(resolver.Validationf("invalid attributes: repo (want owner/name, got %q)", raw))
		}
		r, _, err := c.api.Repositories.Get(ctx, repo.Owner, repo.Name)
		if err != nil {
			return resolver.Fail(apiError("github get repository "+repo.String(), err))
		}
		return resolver.One(instance.Make(Kind, entityRepository, mapRepository(r)))
	}

	if len(c.cfg.Repos) > 0 {
		out := make([]instance.Instance, 0, len(c.cfg.Repos))
		for _, repo := range c.cfg.Repos {
			r, _, err := c.api.Repositories.Get(ctx, repo.Owner, repo.Name)
			if err != nil {
				return resolver.Fail(apiError("github get repository "+repo.String(), err))
			}
			out = append(out, instance.Make(Kind, entityRepository, mapRepository(r)))
		}
		return resolver.Many(out)
	}
	if c.cfg.Owner == "" {
		return resolver.Fail(resolver.Configf("github: set %s or %s to list repositories", envOwner, envRepos))
	}

	repos, _, err := c.api.Repositories.ListByOrg(ctx, c.cfg.Owner, &gh.RepositoryListByOrgOptions{
		ListOptions: gh.ListOptions{PerPage: pageSize},
	})
	if err != nil && resolver.HasCode(apiError("", err), resolver.CodeNotFound) {
		// Not an organization; try the user namespace.
		repos, _, err = c.api.Repositories.ListByUser(ctx, c.cfg.Owner, &gh.RepositoryListByUserOptions{
			ListOptions: gh.ListOptions{PerPage: pageSize},
		})
	}
	if err != nil {
		return resolver.Fail(apiError("github list repositories for "+c.cfg.Owner, err))
	}
	out := make([]instance.Instance, 0, len(repos))
	for _, r := range repos {
		if len(out) == pageSize {
			break
		}
		out = append(out, instance.Make(Kind, entityRepository, mapRepository(r)))
	}
	return resolver.Many(out)
}
