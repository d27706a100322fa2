package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karmaclaims-backend/storage"
)

func TestFromViper_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ProviderGemini, cfg.LLMProvider)
	assert.Equal(t, "gemini-2.5-flash", cfg.TextModel)
	assert.Equal(t, "gemini-embedding-001", cfg.EmbeddingModel)
	assert.Equal(t, 768, cfg.EmbeddingDimensions)
	assert.Equal(t, 45*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 8*time.Second, cfg.EmbeddingTimeout)
	assert.Equal(t, 5*time.Second, cfg.SearchTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 5*time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 1000, cfg.MaxComplaintLength)
	assert.Equal(t, storage.StorageTypeLocal, cfg.Storage.Type)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.IsDevelopment())
}

func TestFromViper_Groq(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Groq")
	t.Setenv("GROQ_API_KEY", "gsk")
	t.Setenv("EMBEDDING_PROVIDER", "none")
	t.Setenv("RETRY_BASE_DELAY", "250ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://karmaclaims.in, http://localhost:5173")
	t.Setenv("APP_ENV", "development")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, ProviderGroq, cfg.LLMProvider)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.TextModel)
	assert.Equal(t, "meta-llama/llama-4-scout-17b-16e-instruct", cfg.VisionModel)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, []string{"https://karmaclaims.in", "http://localhost:5173"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.IsDevelopment())
}

func TestFromViper_ValidationErrors(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "groq")
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("STORAGE_TYPE", "s3")
	t.Setenv("AWS_S3_BUCKET", "")
	t.Setenv("MATCH_THRESHOLD", "1.5")

	_, err := FromViper(newViper())
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "GROQ_API_KEY")
	assert.Contains(t, msg, "EMBEDDING_PROVIDER=gemini")
	assert.Contains(t, msg, "AWS_S3_BUCKET")
	assert.Contains(t, msg, "MATCH_THRESHOLD")
}

func TestFromViper_UnknownProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "bard")
	t.Setenv("EMBEDDING_PROVIDER", "none")

	_, err := FromViper(newViper())
	assert.ErrorContains(t, err, "LLM_PROVIDER")
}
