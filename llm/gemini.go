package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

// GeminiGenerator generates text through the Gemini API
type GeminiGenerator struct {
	client *genai.Client
	models ModelPair
}

// NewGeminiGenerator creates a Gemini-backed generator
func NewGeminiGenerator(client *genai.Client, models ModelPair) *GeminiGenerator {
	return &GeminiGenerator{client: client, models: models}
}

// Generate sends the conversation as a chat session. System messages become the system instruction.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	system, turns := splitSystem(req.Messages)
	if len(turns) == 0 {
		return nil, errors.New("gemini generate: no user message")
	}

	name := g.models.For(req.Messages)
	model := g.client.GenerativeModel(name)
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.TopP > 0 {
		model.SetTopP(req.TopP)
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))},
		}
	}

	cs := model.StartChat()
	for _, m := range turns[:len(turns)-1] {
		cs.History = append(cs.History, &genai.Content{
			Role:  geminiRole(m.Role),
			Parts: geminiParts(m),
		})
	}

	resp, err := cs.SendMessage(ctx, geminiParts(turns[len(turns)-1])...)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		if sb.Len() > 0 {
			break
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return nil, ErrEmptyResponse
	}

	out := &Response{Text: sb.String(), Model: name}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

func geminiRole(r Role) string {
	if r == RoleAssistant {
		return "model"
	}
	return "user"
}

func geminiParts(m Message) []genai.Part {
	parts := []genai.Part{genai.Text(m.Content)}
	if m.Image != nil && len(m.Image.Data) > 0 {
		parts = append(parts, genai.Blob{MIMEType: m.Image.MIMEType, Data: m.Image.Data})
	}
	return parts
}

func classifyGeminiError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return NewRateLimitError(err)
	}
	if looksRateLimited(err) {
		return NewRateLimitError(err)
	}
	return fmt.Errorf("gemini generate: %w", err)
}

// GeminiEmbedder embeds text with a Gemini embedding model
type GeminiEmbedder struct {
	model *genai.EmbeddingModel
	dims  int
}

// NewGeminiEmbedder creates an embedder. taskType distinguishes query from document embeddings.
func NewGeminiEmbedder(client *genai.Client, modelName string, dims int, taskType genai.TaskType) *GeminiEmbedder {
	em := client.EmbeddingModel(modelName)
	em.TaskType = taskType
	return &GeminiEmbedder{model: em, dims: dims}
}

// Embed returns an L2-normalised embedding
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		var apiErr *googleapi.Error
		if (errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests) || looksRateLimited(err) {
			return nil, NewRateLimitError(err)
		}
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, errors.New("gemini embed: empty embedding")
	}

	vec := res.Embedding.Values
	if e.dims > 0 {
		if len(vec) < e.dims {
			return nil, fmt.Errorf("gemini embed: expected %d dimensions, got %d", e.dims, len(vec))
		}
		// gemini-embedding-001 vectors stay valid when truncated and renormalised
		vec = vec[:e.dims]
	}
	return Normalize(vec), nil
}

// Dimensions returns the configured vector length
func (e *GeminiEmbedder) Dimensions() int {
	return e.dims
}

// Normalize scales v to unit length in place and returns it
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
