package config

import (
	"context"
)

// BuildEnv assembles the integration config sources enabled by cfg:
// YAML file, then Vault, then AWS Secrets Manager.
func BuildEnv(ctx context.Context, cfg Config) (*Env, error) {
	var sources []Source
	if cfg.IntegrationConfigFile != "" {
		sources = append(sources, NewFileSource(cfg.IntegrationConfigFile))
	}
	if cfg.Vault.Address != "" {
		vs, err := NewVaultSource(cfg.Vault)
		if err != nil {
			return nil, err
		}
		sources = append(sources, vs)
	}
	if cfg.AWS.SecretPrefix != "" {
		as, err := NewAWSSource(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		sources = append(sources, as)
	}
	return NewEnv(sources...), nil
}
