// Package secretsloader bootstraps the sequencer's operator signing key,
// preferring AWS Secrets Manager over a local file the way spec.md §9's
// "Signing material lifecycle" note anticipates production deployments
// doing ("production deployments would replace that route with a
// secrets-store integration").
package secretsloader

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// LoadOperatorKey resolves the sequencer's operator signing key: from AWS
// Secrets Manager when secretID is set, otherwise from the local file at
// path (base64-encoded 64-byte ed25519 private key in both cases).
func LoadOperatorKey(ctx context.Context, region, secretID, path string) (ed25519.PrivateKey, error) {
	if secretID != "" {
		return loadFromSecretsManager(ctx, region, secretID)
	}

	return loadFromFile(path)
}

func loadFromSecretsManager(ctx context.Context, region, secretID string) (ed25519.PrivateKey, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("secretsloader: load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(cfg)

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &secretID})
	if err != nil {
		return nil, fmt.Errorf("secretsloader: fetch secret %s: %w", secretID, err)
	}

	if out.SecretString == nil {
		return nil, fmt.Errorf("secretsloader: secret %s has no string value", secretID)
	}

	return decodeKey(*out.SecretString)
}

func loadFromFile(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("secretsloader: read key file %s: %w", path, err)
	}

	return decodeKey(string(raw))
}

func decodeKey(encoded string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(trimNewline(encoded))
	if err != nil {
		return nil, fmt.Errorf("secretsloader: decode base64 signing key: %w", err)
	}

	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("secretsloader: signing key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}

	return ed25519.PrivateKey(raw), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}

	return s
}
