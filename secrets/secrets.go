package secrets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"google.golang.org/api/secretmanager/v1"
)

// Load fetches a credential: a local token file when present, else the
// same-named secret from Secret Manager when running inside GCP.
func Load(ctx context.Context, path, secretName string) ([]byte, error) {
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}

	if !OnGCP() {
		return nil, fmt.Errorf("token file %s not found and not running on GCP", path)
	}

	log.Printf("[secrets] %s missing locally, fetching %q from Secret Manager", path, secretName)
	return fetchSecret(ctx, secretName)
}

// LoadJSON unmarshals a credential into v.
func LoadJSON(ctx context.Context, path, secretName string, v any) error {
	data, err := Load(ctx, path, secretName)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse credential %s: %w", secretName, err)
	}
	return nil
}

// OnGCP reports whether the process runs on Cloud Run, App Engine, or
// another environment advertising a GCP project.
func OnGCP() bool {
	return os.Getenv("K_SERVICE") != "" ||
		os.Getenv("GAE_ENV") != "" ||
		os.Getenv("FUNCTION_TARGET") != ""
}

func fetchSecret(ctx context.Context, name string) ([]byte, error) {
	project := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if project == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT not set")
	}

	svc, err := secretmanager.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("secretmanager service: %w", err)
	}

	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", project, name)
	resp, err := svc.Projects.Secrets.Versions.Access(resource).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("access secret %s: %w", name, err)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Payload.Data)
	if err != nil {
		return nil, fmt.Errorf("decode secret payload: %w", err)
	}
	return data, nil
}
