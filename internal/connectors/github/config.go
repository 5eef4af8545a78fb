package github

import (
	"strings"
)

const (
	envToken          = "GITHUB_TOKEN"
	envClientID       = "GITHUB_CLIENT_ID"
	envClientSecret   = "GITHUB_CLIENT_SECRET"
	envAuthCode       = "GITHUB_AUTH_CODE"
	envOAuthURL       = "GITHUB_OAUTH_URL"
	envAppID          = "GITHUB_APP_ID"
	envAppPrivateKey  = "GITHUB_APP_PRIVATE_KEY"
	envInstallationID = "GITHUB_APP_INSTALLATION_ID"
	envOwner          = "GITHUB_OWNER"
	envRepos          = "GITHUB_REPOS"
	envAPIBase        = "GITHUB_API_BASE"
	envPollInterval   = "GITHUB_POLL_INTERVAL_MINUTES"

	defaultAPIBase = "https://api.github.com"
)

var authKeys = [][]string{
	{envToken},
	{envClientID, envClientSecret, envAuthCode},
	{envAppID, envAppPrivateKey, envInstallationID},
}

// Config holds the non-secret GitHub settings.
type Config struct {
	Owner   string
	Repos   []Repo
	APIBase string
}

// Repo is one owner/name pair.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string { return r.Owner + "/" + r.Name }

// LoadConfig reads GITHUB_* settings. GITHUB_REPOS entries without an owner
// inherit GITHUB_OWNER.
func LoadConfig(get func(string) string) Config {
	cfg := Config{
		Owner:   strings.TrimSpace(get(envOwner)),
		APIBase: strings.TrimRight(strings.TrimSpace(get(envAPIBase)), "/"),
	}
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	for _, raw := range strings.Split(get(envRepos), ",") {
		if r, ok := ParseRepo(raw, cfg.Owner); ok {
			cfg.Repos = append(cfg.Repos, r)
		}
	}
	return cfg
}

// ParseRepo accepts "owner/name" or "name" with a default owner.
func ParseRepo(raw, defaultOwner string) (Repo, bool) {
	raw = strings.Trim(strings.TrimSpace(raw), "/")
	if raw == "" {
		return Repo{}, false
	}
	if owner, name, ok := strings.Cut(raw, "/"); ok {
		if owner == "" || name == "" || strings.Contains(name, "/") {
			return Repo{}, false
		}
		return Repo{Owner: owner, Name: name}, true
	}
	if defaultOwner == "" {
		return Repo{}, false
	}
	return Repo{Owner: defaultOwner, Name: raw}, true
}
