package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadEnvConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"BLOB_BACKEND", "DOCUMENT_BUCKET", "SIGNED_URL_TTL_SECONDS", "DEPENDENCY_TIMEOUT_SECONDS",
		"MAX_UPLOAD_SIZE", "AUTH_REMOTE_CHECK", "CLASSIFICATION_CACHE_TTL_SECONDS", "GRAFANA_OTLP_ENDPOINT",
		"DEPLOY_ENV", "PORT",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadEnvConfig()

	assert.Equal(t, BlobBackendMinio, cfg.Storage.Backend)
	assert.Equal(t, "citizen-documents", cfg.Storage.Bucket)
	assert.Equal(t, 15*time.Minute, cfg.Storage.SignedURLTTL)
	assert.Equal(t, 30*time.Second, cfg.Storage.DependencyTimeout)
	assert.Equal(t, int64(52428800), cfg.Storage.MaxUploadSize)
	assert.True(t, cfg.ExternalService.RemoteTokenCheck)
	assert.Equal(t, 5*time.Minute, cfg.Classification.CacheTTL)
	assert.Equal(t, "grafana.gauas.online", cfg.Grafana.OTLPEndpoint)
	assert.Equal(t, "development", cfg.Environment.Mode)
	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.IsProduction())
}

func TestLoadEnvConfigOverrides(t *testing.T) {
	t.Setenv("BLOB_BACKEND", "S3")
	t.Setenv("SIGNED_URL_TTL_SECONDS", "600")
	t.Setenv("DEPENDENCY_TIMEOUT_SECONDS", "not-a-number")
	t.Setenv("MAX_UPLOAD_SIZE", "1024")
	t.Setenv("AUTH_REMOTE_CHECK", "false")
	t.Setenv("GRAFANA_OTLP_ENDPOINT", "http://otel.local:4318")
	t.Setenv("DEPLOY_ENV", "production")

	cfg := LoadEnvConfig()

	assert.Equal(t, BlobBackendS3, cfg.Storage.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Storage.SignedURLTTL)
	assert.Equal(t, 30*time.Second, cfg.Storage.DependencyTimeout)
	assert.Equal(t, int64(1024), cfg.Storage.MaxUploadSize)
	assert.False(t, cfg.ExternalService.RemoteTokenCheck)
	assert.Equal(t, "otel.local:4318", cfg.Grafana.OTLPEndpoint)
	assert.True(t, cfg.IsProduction())
}
