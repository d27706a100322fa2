package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// GroqBaseURL is the OpenAI-compatible endpoint of Groq
const GroqBaseURL = "https://api.groq.com/openai/v1"

// minTemperature stands in for zero, which the client library drops from the payload
const minTemperature = 1e-6

// OpenAIGenerator talks to any OpenAI-compatible chat completion API (Groq, OpenAI)
type OpenAIGenerator struct {
	client *openai.Client
	models ModelPair
}

// NewOpenAIClient builds a client for an OpenAI-compatible endpoint. An empty baseURL means OpenAI.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return openai.NewClientWithConfig(cfg)
}

// NewOpenAIGenerator creates a generator on top of an existing client
func NewOpenAIGenerator(client *openai.Client, models ModelPair) *OpenAIGenerator {
	return &OpenAIGenerator{client: client, models: models}
}

// Generate sends a chat completion request. Images are sent as data URLs.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai generate: no messages")
	}

	name := g.models.For(req.Messages)
	temp := req.Temperature
	if temp == 0 {
		temp = minTemperature
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openAIMessage(m))
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       name,
		Messages:    msgs,
		Temperature: temp,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyResponse
	}

	model := resp.Model
	if model == "" {
		model = name
	}
	return &Response{
		Text:  resp.Choices[0].Message.Content,
		Model: model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func openAIMessage(m Message) openai.ChatCompletionMessage {
	role := openai.ChatMessageRoleUser
	switch m.Role {
	case RoleSystem:
		role = openai.ChatMessageRoleSystem
	case RoleAssistant:
		role = openai.ChatMessageRoleAssistant
	}

	if m.Image == nil || len(m.Image.Data) == 0 {
		return openai.ChatCompletionMessage{Role: role, Content: m.Content}
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", m.Image.MIMEType, base64.StdEncoding.EncodeToString(m.Image.Data))
	return openai.ChatCompletionMessage{
		Role: role,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: m.Content},
			{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailAuto},
			},
		},
	}
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return NewRateLimitError(err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return NewRateLimitError(err)
	}
	return fmt.Errorf("openai generate: %w", err)
}

// OpenAIEmbedder embeds text through an OpenAI-compatible embeddings endpoint
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dims   int
}

// NewOpenAIEmbedder creates an embedder requesting vectors of length dims
func NewOpenAIEmbedder(client *openai.Client, model string, dims int) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, model: model, dims: dims}
}

// Embed returns an L2-normalised embedding
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dims,
	})
	if err != nil {
		if classified := classifyOpenAIError(err); IsRateLimited(classified) {
			return nil, classified
		}
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("openai embed: empty embedding")
	}

	vec := resp.Data[0].Embedding
	if e.dims > 0 && len(vec) != e.dims {
		return nil, fmt.Errorf("openai embed: expected %d dimensions, got %d", e.dims, len(vec))
	}
	return Normalize(vec), nil
}

// Dimensions returns the configured vector length
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}
