// Package llm wraps the hosted generation and embedding services behind
// provider-neutral interfaces.
package llm

import "context"

// Role tags the author of a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Image is an inline image attached to a message
type Image struct {
	MIMEType string
	Data     []byte
}

// Message is one role-tagged message. At most one message per request should carry an image.
type Message struct {
	Role    Role
	Content string
	Image   *Image
}

// Request is a generation request with its sampling parameters
type Request struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
	TopP        float32
}

// Usage is the token accounting reported by the provider
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is generated text plus usage metadata
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Generator produces text from a conversation
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Embedder turns text into a fixed-length vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// ModelPair names the text-only and vision-capable variants of a provider's model
type ModelPair struct {
	Text   string
	Vision string
}

// For picks the model for a conversation. The choice depends only on whether an image is attached.
func (p ModelPair) For(msgs []Message) string {
	if RequiresVision(msgs) {
		return p.Vision
	}
	return p.Text
}

// RequiresVision reports whether any message carries an image
func RequiresVision(msgs []Message) bool {
	for _, m := range msgs {
		if m.Image != nil && len(m.Image.Data) > 0 {
			return true
		}
	}
	return false
}

// splitSystem separates system messages from the conversation turns
func splitSystem(msgs []Message) (system []string, turns []Message) {
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}
