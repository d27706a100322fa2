package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviders(t *testing.T) {
	ctx := context.Background()
	p := NewProviders(ProviderConfig{
		Generation:          ProviderGroq,
		Embedding:           ProviderNone,
		GroqAPIKey:          "gsk",
		Models:              ModelPair{Text: "llama-3.3-70b-versatile", Vision: "scout"},
		EmbeddingDimensions: 768,
	})
	defer p.Close()

	gen, err := p.Generator(ctx)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIGenerator{}, gen)

	emb, err := p.Embedder(ctx, PurposeQuery)
	require.NoError(t, err)
	assert.Nil(t, emb)

	_, err = NewProviders(ProviderConfig{Generation: "bard"}).Generator(ctx)
	assert.Error(t, err)

	_, err = NewProviders(ProviderConfig{Generation: ProviderGemini}).Generator(ctx)
	assert.ErrorContains(t, err, "api key")
}
