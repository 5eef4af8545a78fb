package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
)

const vaultHTTPTimeout = 30 * time.Second

// VaultSource reads KV v2 secrets at <mount>/data/<prefix>/<integration>.
type VaultSource struct {
	client *vaultapi.Client
	mount  string
	prefix string
}

func NewVaultSource(opts VaultOptions) (*VaultSource, error) {
	address := strings.TrimSpace(opts.Address)
	if address == "" {
		return nil, errors.New("vault address is required")
	}

	cfg := vaultapi.DefaultConfig()
	cfg.Address = address
	cfg.HttpClient = &http.Client{Timeout: vaultHTTPTimeout}

	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client setup: %w", err)
	}
	if ns := strings.TrimSpace(opts.Namespace); ns != "" {
		client.SetNamespace(ns)
	}

	if token := strings.TrimSpace(opts.Token); token != "" {
		client.SetToken(token)
	} else {
		roleID := strings.TrimSpace(opts.AppRoleRoleID)
		secretID := strings.TrimSpace(opts.AppRoleSecretID)
		if roleID == "" || secretID == "" {
			return nil, errors.New("vault token or AppRole role ID and secret ID are required")
		}
		mount := strings.Trim(strings.TrimSpace(opts.AppRoleMount), "/")
		if mount == "" {
			mount = "approle"
		}
		loginPath := "auth/" + mount + "/login"
		secret, err := client.Logical().Write(loginPath, map[string]any{
			"role_id":   roleID,
			"secret_id": secretID,
		})
		if err != nil {
			return nil, fmt.Errorf("vault approle login at %s: %w", loginPath, err)
		}
		if secret == nil || secret.Auth == nil || strings.TrimSpace(secret.Auth.ClientToken) == "" {
			return nil, errors.New("vault approle login succeeded without client token")
		}
		client.SetToken(secret.Auth.ClientToken)
	}

	mount := strings.Trim(strings.TrimSpace(opts.Mount), "/")
	if mount == "" {
		mount = defaultVaultMount
	}
	return &VaultSource{
		client: client,
		mount:  mount,
		prefix: strings.Trim(strings.TrimSpace(opts.Prefix), "/"),
	}, nil
}

func (s *VaultSource) Name() string { return "vault" }

func (s *VaultSource) Fetch(ctx context.Context, integration string) (map[string]string, error) {
	path := s.secretPath(integration)
	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("vault read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return map[string]string{}, nil
	}
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return map[string]string{}, nil
	}
	return stringifyValues(data), nil
}

func (s *VaultSource) secretPath(integration string) string {
	parts := []string{s.mount, "data"}
	if s.prefix != "" {
		parts = append(parts, s.prefix)
	}
	parts = append(parts, normalizeIntegration(integration))
	return strings.Join(parts, "/")
}
