package service

import (
	"context"
	"fmt"
	"strings"

	"chatpro/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
)

// SecretManagerService reads secret values from GCP Secret Manager.
type SecretManagerService interface {
	// AccessSecret returns the latest version of name. name may be a short secret id or a full resource path.
	AccessSecret(ctx context.Context, name string) (string, error)
	Close() error
}

type secretAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

type secretManagerService struct {
	client    secretAccessor
	projectID string
}

func NewSecretManagerService(ctx context.Context, cfg *config.Config) (SecretManagerService, error) {
	projectID := cfg.GetSecretManagerProjectID()
	if projectID == "" {
		return nil, fmt.Errorf("GCP Project ID is not set for secret lookups")
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	return &secretManagerService{
		client:    client,
		projectID: projectID,
	}, nil
}

func (s *secretManagerService) resourceName(name string) string {
	if strings.HasPrefix(name, "projects/") {
		if strings.Contains(name, "/versions/") {
			return name
		}
		return name + "/versions/latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)
}

func (s *secretManagerService) AccessSecret(ctx context.Context, name string) (string, error) {
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.resourceName(name),
	}

	result, err := s.client.AccessSecretVersion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to access secret version %s: %w", req.Name, err)
	}

	return strings.TrimSpace(string(result.Payload.Data)), nil
}

func (s *secretManagerService) Close() error {
	return s.client.Close()
}

// ResolveWebhookSecrets fills empty webhook secrets from Secret Manager when a secret name is configured.
func ResolveWebhookSecrets(ctx context.Context, cfg *config.Config, sm SecretManagerService) error {
	targets := []struct {
		value *string
		name  string
	}{
		{&cfg.RevenueCatWebhookSecret, cfg.RevenueCatWebhookSecretName},
		{&cfg.StripeWebhookSecret, cfg.StripeWebhookSecretName},
	}
	for _, t := range targets {
		if *t.value != "" || t.name == "" {
			continue
		}
		v, err := sm.AccessSecret(ctx, t.name)
		if err != nil {
			return err
		}
		*t.value = v
	}
	return nil
}

// NeedsSecretManager reports whether any webhook secret must be fetched.
func NeedsSecretManager(cfg *config.Config) bool {
	return (cfg.RevenueCatWebhookSecret == "" && cfg.RevenueCatWebhookSecretName != "") ||
		(cfg.StripeWebhookSecret == "" && cfg.StripeWebhookSecretName != "")
}
