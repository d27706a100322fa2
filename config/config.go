// Package config loads server and ingestion settings from .env, the
// environment and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"karmaclaims-backend/llm"
	"karmaclaims-backend/storage"
)

const (
	ProviderGemini = llm.ProviderGemini
	ProviderGroq   = llm.ProviderGroq
	ProviderOpenAI = llm.ProviderOpenAI
	ProviderNone   = llm.ProviderNone
)

// Config is the typed application configuration
type Config struct {
	Env      string
	LogLevel string
	Port     string

	DatabaseURL string

	LLMProvider       string
	EmbeddingProvider string
	GeminiAPIKey      string
	GroqAPIKey        string
	OpenAIAPIKey      string
	OpenAIBaseURL     string

	TextModel           string
	VisionModel         string
	EmbeddingModel      string
	EmbeddingDimensions int

	GenerationTimeout time.Duration
	ExpansionTimeout  time.Duration
	EmbeddingTimeout  time.Duration
	SearchTimeout     time.Duration
	RetryAttempts     int
	RetryBaseDelay    time.Duration

	MatchThreshold     float64
	MatchCount         int
	MaxComplaintLength int
	MaxImageBytes      int64

	CompanyDirectoryPath string
	PolicyPath           string

	Storage storage.StorageConfig

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	AdminTokenHash     string
}

// IsDevelopment reports whether APP_ENV selects development mode
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

var defaultModels = map[string][3]string{
	// text, vision, embedding
	ProviderGemini: {"gemini-2.5-flash", "gemini-2.5-flash", "gemini-embedding-001"},
	ProviderGroq:   {"llama-3.3-70b-versatile", "meta-llama/llama-4-scout-17b-16e-instruct", ""},
	ProviderOpenAI: {"gpt-4o-mini", "gpt-4o-mini", "text-embedding-3-small"},
}

// Load reads .env files when present, then the environment, and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env", "../../.env"}
	}
	for _, f := range envFiles {
		// missing files are fine, the process environment still applies
		if err := godotenv.Load(f); err == nil {
			break
		}
	}

	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", "8080")

	v.SetDefault("LLM_PROVIDER", ProviderGemini)
	v.SetDefault("EMBEDDING_PROVIDER", ProviderGemini)
	v.SetDefault("EMBEDDING_DIMENSIONS", 768)

	v.SetDefault("GENERATION_TIMEOUT", "45s")
	v.SetDefault("EXPANSION_TIMEOUT", "10s")
	v.SetDefault("EMBEDDING_TIMEOUT", "8s")
	v.SetDefault("SEARCH_TIMEOUT", "5s")
	v.SetDefault("RETRY_ATTEMPTS", 3)
	v.SetDefault("RETRY_BASE_DELAY", "5s")

	v.SetDefault("MATCH_THRESHOLD", 0.5)
	v.SetDefault("MATCH_COUNT", 5)
	v.SetDefault("MAX_COMPLAINT_LENGTH", 1000)
	v.SetDefault("MAX_IMAGE_BYTES", 5<<20)

	v.SetDefault("STORAGE_TYPE", string(storage.StorageTypeLocal))
	v.SetDefault("STORAGE_LOCAL_PATH", "./storage/files")
	v.SetDefault("AWS_REGION", "ap-south-1")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_RPS", 1.0)
	v.SetDefault("RATE_LIMIT_BURST", 5)
	return v
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Env:      v.GetString("APP_ENV"),
		LogLevel: v.GetString("LOG_LEVEL"),
		Port:     v.GetString("PORT"),

		DatabaseURL: v.GetString("DATABASE_URL"),

		LLMProvider:       strings.ToLower(v.GetString("LLM_PROVIDER")),
		EmbeddingProvider: strings.ToLower(v.GetString("EMBEDDING_PROVIDER")),
		GeminiAPIKey:      v.GetString("GEMINI_API_KEY"),
		GroqAPIKey:        v.GetString("GROQ_API_KEY"),
		OpenAIAPIKey:      v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:     v.GetString("OPENAI_BASE_URL"),

		TextModel:           v.GetString("TEXT_MODEL"),
		VisionModel:         v.GetString("VISION_MODEL"),
		EmbeddingModel:      v.GetString("EMBEDDING_MODEL"),
		EmbeddingDimensions: v.GetInt("EMBEDDING_DIMENSIONS"),

		GenerationTimeout: v.GetDuration("GENERATION_TIMEOUT"),
		ExpansionTimeout:  v.GetDuration("EXPANSION_TIMEOUT"),
		EmbeddingTimeout:  v.GetDuration("EMBEDDING_TIMEOUT"),
		SearchTimeout:     v.GetDuration("SEARCH_TIMEOUT"),
		RetryAttempts:     v.GetInt("RETRY_ATTEMPTS"),
		RetryBaseDelay:    v.GetDuration("RETRY_BASE_DELAY"),

		MatchThreshold:     v.GetFloat64("MATCH_THRESHOLD"),
		MatchCount:         v.GetInt("MATCH_COUNT"),
		MaxComplaintLength: v.GetInt("MAX_COMPLAINT_LENGTH"),
		MaxImageBytes:      v.GetInt64("MAX_IMAGE_BYTES"),

		CompanyDirectoryPath: v.GetString("COMPANY_DIRECTORY_PATH"),
		PolicyPath:           v.GetString("POLICY_PATH"),

		Storage: storage.StorageConfig{
			Type:         storage.StorageType(strings.ToLower(v.GetString("STORAGE_TYPE"))),
			LocalPath:    v.GetString("STORAGE_LOCAL_PATH"),
			S3Bucket:     v.GetString("AWS_S3_BUCKET"),
			S3Region:     v.GetString("AWS_REGION"),
			S3Endpoint:   v.GetString("AWS_S3_ENDPOINT"),
			AWSAccessKey: v.GetString("AWS_ACCESS_KEY_ID"),
			AWSSecretKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
		},

		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		RateLimitRPS:       v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:     v.GetInt("RATE_LIMIT_BURST"),
		AdminTokenHash:     v.GetString("ADMIN_TOKEN_HASH"),
	}

	if models, ok := defaultModels[cfg.LLMProvider]; ok {
		if cfg.TextModel == "" {
			cfg.TextModel = models[0]
		}
		if cfg.VisionModel == "" {
			cfg.VisionModel = models[1]
		}
	}
	if models, ok := defaultModels[cfg.EmbeddingProvider]; ok && cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = models[2]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks provider credentials, numeric ranges and storage settings
func (c *Config) Validate() error {
	var errs []error

	switch c.LLMProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when LLM_PROVIDER=gemini"))
		}
	case ProviderGroq:
		if c.GroqAPIKey == "" {
			errs = append(errs, errors.New("GROQ_API_KEY is required when LLM_PROVIDER=groq"))
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when LLM_PROVIDER=openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be one of gemini, groq, openai, got %q", c.LLMProvider))
	}

	switch c.EmbeddingProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when EMBEDDING_PROVIDER=gemini"))
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when EMBEDDING_PROVIDER=openai"))
		}
	case ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("EMBEDDING_PROVIDER must be one of gemini, openai, none, got %q", c.EmbeddingProvider))
	}

	if c.EmbeddingDimensions <= 0 {
		errs = append(errs, errors.New("EMBEDDING_DIMENSIONS must be positive"))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, errors.New("RETRY_ATTEMPTS must be at least 1"))
	}
	if c.RetryBaseDelay < 0 {
		errs = append(errs, errors.New("RETRY_BASE_DELAY must not be negative"))
	}
	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		errs = append(errs, errors.New("MATCH_THRESHOLD must be between 0 and 1"))
	}
	if c.MatchCount < 1 {
		errs = append(errs, errors.New("MATCH_COUNT must be at least 1"))
	}
	if c.MaxComplaintLength < 1 {
		errs = append(errs, errors.New("MAX_COMPLAINT_LENGTH must be at least 1"))
	}
	if c.MaxImageBytes < 1 {
		errs = append(errs, errors.New("MAX_IMAGE_BYTES must be at least 1"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}

	switch c.Storage.Type {
	case storage.StorageTypeLocal:
	case storage.StorageTypeS3:
		if c.Storage.S3Bucket == "" {
			errs = append(errs, errors.New("AWS_S3_BUCKET is required when STORAGE_TYPE=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_TYPE must be local or s3, got %q", c.Storage.Type))
	}

	return errors.Join(errs...)
}

// Providers returns the generation and embedding backend settings
func (c *Config) Providers() llm.ProviderConfig {
	return llm.ProviderConfig{
		Generation:          c.LLMProvider,
		Embedding:           c.EmbeddingProvider,
		GeminiAPIKey:        c.GeminiAPIKey,
		GroqAPIKey:          c.GroqAPIKey,
		OpenAIAPIKey:        c.OpenAIAPIKey,
		OpenAIBaseURL:       c.OpenAIBaseURL,
		Models:              llm.ModelPair{Text: c.TextModel, Vision: c.VisionModel},
		EmbeddingModel:      c.EmbeddingModel,
		EmbeddingDimensions: c.EmbeddingDimensions,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
