package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

const awsHTTPTimeout = 30 * time.Second

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSource reads a JSON object secret named <prefix>/<integration>.
type AWSSource struct {
	api    secretsAPI
	prefix string
}

func NewAWSSource(ctx context.Context, opts AWSOptions) (*AWSSource, error) {
	prefix := strings.Trim(strings.TrimSpace(opts.SecretPrefix), "/")
	if prefix == "" {
		return nil, errors.New("aws secret prefix is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(&http.Client{Timeout: awsHTTPTimeout}),
	}
	if region := strings.TrimSpace(opts.Region); region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			strings.TrimSpace(opts.AccessKeyID),
			strings.TrimSpace(opts.SecretAccessKey),
			strings.TrimSpace(opts.SessionToken),
		)))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	return newAWSSourceWithAPI(secretsmanager.NewFromConfig(cfg), prefix), nil
}

func newAWSSourceWithAPI(api secretsAPI, prefix string) *AWSSource {
	return &AWSSource{api: api, prefix: strings.Trim(prefix, "/")}
}

func (s *AWSSource) Name() string { return "aws-secretsmanager" }

func (s *AWSSource) Fetch(ctx context.Context, integration string) (map[string]string, error) {
	id := s.prefix + "/" + normalizeIntegration(integration)
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("get secret %s: %w", id, err)
	}
	raw := strings.TrimSpace(aws.ToString(out.SecretString))
	if raw == "" {
		return map[string]string{}, nil
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("secret %s is not a JSON object: %w", id, err)
	}
	return stringifyValues(values), nil
}
