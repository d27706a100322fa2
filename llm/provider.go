package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Provider names accepted by NewGenerator and NewEmbedder
const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// EmbeddingPurpose selects the Gemini task type for an embedder
type EmbeddingPurpose int

const (
	PurposeQuery EmbeddingPurpose = iota
	PurposeDocument
)

// ProviderConfig names the backends and credentials for generation and embedding
type ProviderConfig struct {
	Generation          string
	Embedding           string
	GeminiAPIKey        string
	GroqAPIKey          string
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	Models              ModelPair
	EmbeddingModel      string
	EmbeddingDimensions int
}

// Providers owns the clients built from a ProviderConfig
type Providers struct {
	cfg    ProviderConfig
	gemini *genai.Client
}

// NewProviders creates the underlying SDK clients lazily. Close releases them.
func NewProviders(cfg ProviderConfig) *Providers {
	return &Providers{cfg: cfg}
}

func (p *Providers) geminiClient(ctx context.Context) (*genai.Client, error) {
	if p.gemini != nil {
		return p.gemini, nil
	}
	if p.cfg.GeminiAPIKey == "" {
		return nil, errors.New("gemini api key not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(p.cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	p.gemini = client
	return client, nil
}

// Generator builds the configured generation backend
func (p *Providers) Generator(ctx context.Context) (Generator, error) {
	switch p.cfg.Generation {
	case ProviderGemini:
		client, err := p.geminiClient(ctx)
		if err != nil {
			return nil, err
		}
		return NewGeminiGenerator(client, p.cfg.Models), nil
	case ProviderGroq:
		return NewOpenAIGenerator(NewOpenAIClient(p.cfg.GroqAPIKey, GroqBaseURL), p.cfg.Models), nil
	case ProviderOpenAI:
		return NewOpenAIGenerator(NewOpenAIClient(p.cfg.OpenAIAPIKey, p.cfg.OpenAIBaseURL), p.cfg.Models), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", p.cfg.Generation)
	}
}

// Embedder builds the configured embedding backend. The none provider yields a nil embedder.
func (p *Providers) Embedder(ctx context.Context, purpose EmbeddingPurpose) (Embedder, error) {
	switch p.cfg.Embedding {
	case ProviderGemini:
		client, err := p.geminiClient(ctx)
		if err != nil {
			return nil, err
		}
		taskType := genai.TaskTypeRetrievalQuery
		if purpose == PurposeDocument {
			taskType = genai.TaskTypeRetrievalDocument
		}
		return NewGeminiEmbedder(client, p.cfg.EmbeddingModel, p.cfg.EmbeddingDimensions, taskType), nil
	case ProviderOpenAI:
		client := NewOpenAIClient(p.cfg.OpenAIAPIKey, p.cfg.OpenAIBaseURL)
		return NewOpenAIEmbedder(client, p.cfg.EmbeddingModel, p.cfg.EmbeddingDimensions), nil
	case ProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", p.cfg.Embedding)
	}
}

// Close releases the Gemini client if one was created
func (p *Providers) Close() error {
	if p.gemini == nil {
		return nil
	}
	return p.gemini.Close()
}
