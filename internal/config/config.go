package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultMetricsAddr  = ":9090"
	defaultVaultMount   = "secret"
	defaultSecretPrefix = "resolvers"
)

type Config struct {
	MetricsAddr           string
	Connectors            []string
	IntegrationConfigFile string
	WebhookURL            string
	PollIntervalOverride  time.Duration
	Vault                 VaultOptions
	AWS                   AWSOptions
}

// VaultOptions configures the Vault KV v2 integration config source.
// The source is enabled when Address is set.
type VaultOptions struct {
	Address         string
	Token           string
	Namespace       string
	Mount           string
	Prefix          string
	AppRoleRoleID   string
	AppRoleSecretID string
	AppRoleMount    string
}

// AWSOptions configures the Secrets Manager integration config source.
// The source is enabled when SecretPrefix is set.
type AWSOptions struct {
	SecretPrefix    string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		MetricsAddr:           getenvDefault("METRICS_ADDR", defaultMetricsAddr),
		Connectors:            splitList(os.Getenv("RESOLVERS_CONNECTORS")),
		IntegrationConfigFile: strings.TrimSpace(os.Getenv("INTEGRATION_CONFIG_FILE")),
		WebhookURL:            strings.TrimSpace(os.Getenv("SUBSCRIBER_WEBHOOK_URL")),
		Vault: VaultOptions{
			Address:         strings.TrimSpace(os.Getenv("VAULT_ADDR")),
			Token:           strings.TrimSpace(os.Getenv("VAULT_TOKEN")),
			Namespace:       strings.TrimSpace(os.Getenv("VAULT_NAMESPACE")),
			Mount:           getenvDefault("VAULT_INTEGRATION_PATH", defaultVaultMount),
			Prefix:          getenvDefault("VAULT_INTEGRATION_PREFIX", defaultSecretPrefix),
			AppRoleRoleID:   strings.TrimSpace(os.Getenv("VAULT_APPROLE_ROLE_ID")),
			AppRoleSecretID: strings.TrimSpace(os.Getenv("VAULT_APPROLE_SECRET_ID")),
			AppRoleMount:    getenvDefault("VAULT_APPROLE_MOUNT", "approle"),
		},
		AWS: AWSOptions{
			SecretPrefix:    strings.TrimSpace(os.Getenv("AWS_INTEGRATION_SECRET_PREFIX")),
			Region:          strings.TrimSpace(os.Getenv("AWS_REGION")),
			AccessKeyID:     strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID")),
			SecretAccessKey: strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY")),
			SessionToken:    strings.TrimSpace(os.Getenv("AWS_SESSION_TOKEN")),
		},
	}

	if v := os.Getenv("POLL_INTERVAL_OVERRIDE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, errors.New("POLL_INTERVAL_OVERRIDE must be a positive duration")
		}
		cfg.PollIntervalOverride = d
	}

	if cfg.Vault.Address != "" && cfg.Vault.Token == "" && cfg.Vault.AppRoleRoleID == "" {
		return cfg, errors.New("VAULT_TOKEN or VAULT_APPROLE_ROLE_ID is required when VAULT_ADDR is set")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parsePositiveInt(v string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	default:
		return false, false
	}
}
