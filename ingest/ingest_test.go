package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karmaclaims-backend/llm"
	"karmaclaims-backend/models"
	"karmaclaims-backend/policy"
	"karmaclaims-backend/storage"
)

func TestTagForFile(t *testing.T) {
	tests := []struct {
		filename string
		industry policy.Industry
		act      string
	}{
		{"RBI_Ombudsman_2026.pdf", policy.IndustryBanking, "RBI Integrated Ombudsman Scheme 2026"},
		{"rbi_ombudsman_scheme_2021.pdf", policy.IndustryBanking, "RBI Integrated Ombudsman Scheme 2021"},
		{"legal/dgca_car_section_3.pdf", policy.IndustryAviation, "DGCA CAR Section 3"},
		{"MoRTH_guidelines.pdf", policy.IndustryTransport, "MoRTH Cab Aggregator Guidelines"},
		{"it_act_2000.pdf", policy.IndustryCyberCrime, "Information Technology Act 2000"},
		{"indian_railway_refund_rules.pdf", policy.IndustryRailways, "Railway Passengers (Cancellation/Refund) Rules"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			tag := TagForFile(tt.filename)
			assert.Equal(t, tt.industry, tag.Industry)
			assert.Equal(t, tt.act, tag.Act)
			assert.NotEmpty(t, tag.Penalty)
		})
	}

	fallback := TagForFile("legal_metrology_packaged_commodities.pdf")
	assert.Equal(t, policy.IndustryGeneralLegal, fallback.Industry)
	assert.Equal(t, "Legal Metrology Packaged Commodities", fallback.Act)
	assert.Equal(t, fallbackPenalty, fallback.Penalty)
}

func TestChunkText(t *testing.T) {
	text := strings.Repeat("a", 800) + strings.Repeat(" ", 780) + "tail text" + strings.Repeat(" ", 11) + strings.Repeat("b", 120)

	chunks := ChunkText(text, 800, 50)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 800, len(chunks[0].Text))
	// window 1 is nearly blank and dropped, so indexes keep their positions
	assert.Equal(t, 2, chunks[1].Index)
	assert.Equal(t, strings.Repeat("b", 120), chunks[1].Text)

	assert.Empty(t, ChunkText("", 800, 50))
	assert.Empty(t, ChunkText("too short", 800, 50))
}

func TestChunkText_CountsCharactersNotBytes(t *testing.T) {
	text := strings.Repeat("₹", 1000)
	chunks := ChunkText(text, 800, 50)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("₹", 800), chunks[0].Text)
	assert.Equal(t, strings.Repeat("₹", 200), chunks[1].Text)
}

type fakeStore struct {
	mu       sync.Mutex
	existing map[string]int
	inserted map[string][]models.LegalDocument
}

func (s *fakeStore) CountBySource(_ context.Context, source string) (int, error) {
	return s.existing[source], nil
}

func (s *fakeStore) InsertBatch(_ context.Context, docs []models.LegalDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inserted == nil {
		s.inserted = map[string][]models.LegalDocument{}
	}
	for _, d := range docs {
		s.inserted[d.SourceDocument] = append(s.inserted[d.SourceDocument], d)
	}
	return nil
}

// flakyEmbedder rate limits the first call and succeeds afterwards
type flakyEmbedder struct {
	mu     sync.Mutex
	calls  int
	inputs []string
}

func (e *flakyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.calls == 1 {
		return nil, llm.NewRateLimitError(errors.New("429"))
	}
	e.inputs = append(e.inputs, text)
	return []float32{0.6, 0.8, 0}, nil
}

func (e *flakyEmbedder) Dimensions() int { return 3 }

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	full := filepath.Join(dir, "legal", name)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func TestPipeline_Run(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "rbi_tat_framework.pdf", strings.Repeat("T+1 reversal of failed transactions. ", 40))
	writeSource(t, dir, "dgca_car_refund.pdf", "already stored")
	writeSource(t, dir, "scanned_notice.pdf", "")
	writeSource(t, dir, "readme.txt", "not a pdf")

	src, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	store := &fakeStore{existing: map[string]int{"dgca_car_refund.pdf": 12}}
	emb := &flakyEmbedder{}

	p := NewPipeline(src, store, emb,
		WithRetry(3, time.Millisecond),
		WithConcurrency(2),
		WithTextExtractor(func(data []byte) (string, error) {
			if len(data) == 0 {
				return "", ErrNoText
			}
			return string(data), nil
		}),
	)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Documents: 3, Ingested: 1, Skipped: 1, Failed: 1, Chunks: 2}, report)

	docs := store.inserted["rbi_tat_framework.pdf"]
	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.Equal(t, "Banking", d.IndustryCategory)
		assert.Equal(t, "RBI TAT Framework 2019", d.ActName)
		assert.Equal(t, []float32{0.6, 0.8, 0}, d.Embedding)
	}
	assert.Equal(t, 0, docs[0].ChunkIndex)
	assert.Equal(t, 1, docs[1].ChunkIndex)

	assert.Equal(t, 3, emb.calls)
	for _, in := range emb.inputs {
		assert.True(t, strings.HasPrefix(in, "[ACT: RBI TAT Framework 2019]\n[INDUSTRY: Banking]\n\n"))
	}
	assert.NotContains(t, store.inserted, "dgca_car_refund.pdf")
}

func TestPipeline_EmbeddingFailureSkipsInsert(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "it_act_2000.pdf", strings.Repeat("x", 200))

	src, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	store := &fakeStore{}

	p := NewPipeline(src, store, failingEmbedder{},
		WithTextExtractor(func(b []byte) (string, error) { return string(b), nil }))

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, store.inserted)
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("invalid api key")
}

func (failingEmbedder) Dimensions() int { return 3 }
