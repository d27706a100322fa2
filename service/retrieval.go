package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"karmaclaims-backend/llm"
	"karmaclaims-backend/models"

	"go.uber.org/zap"
)

const (
	DefaultMatchThreshold = 0.5
	DefaultMatchCount     = 5
)

// LegalSearcher is the similarity search side of the legal document store
type LegalSearcher interface {
	SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]models.LegalContextMatch, error)
}

// RetrievalConfig tunes the query planner
type RetrievalConfig struct {
	MatchThreshold   float64
	MatchCount       int
	Dimensions       int // used for the zero vector when no embedder is configured
	ExpansionTimeout time.Duration
	EmbeddingTimeout time.Duration
	SearchTimeout    time.Duration
}

// DefaultRetrievalConfig returns the production defaults
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		MatchThreshold:   DefaultMatchThreshold,
		MatchCount:       DefaultMatchCount,
		Dimensions:       768,
		ExpansionTimeout: 10 * time.Second,
		EmbeddingTimeout: 8 * time.Second,
		SearchTimeout:    5 * time.Second,
	}
}

// ExpansionResult is the outcome of keyword expansion. When Degraded is set
// Query is the raw complaint.
type ExpansionResult struct {
	Query    string
	Degraded bool
	Err      error
}

// EmbeddingResult is the outcome of embedding the query. On failure Vector is all zeros.
type EmbeddingResult struct {
	Vector []float32
	Zero   bool
	Err    error
}

// SearchResult is the outcome of the similarity search
type SearchResult struct {
	Matches []models.LegalContextMatch
	Skipped bool
	Err     error
}

// RetrievalResult carries every stage outcome plus the assembled context block
type RetrievalResult struct {
	Expansion ExpansionResult
	Embedding EmbeddingResult
	Search    SearchResult
	Context   string
}

// Degraded reports whether any stage fell back
func (r RetrievalResult) Degraded() bool {
	return r.Expansion.Degraded || r.Embedding.Zero || r.Search.Skipped || r.Search.Err != nil
}

var (
	errNoEmbedder = errors.New("embedder not configured")
	errNoSearcher = errors.New("legal document store not configured")
)

const expansionInstruction = "Extract 5 to 8 legal search keywords from the consumer complaint below: " +
	"the kind of service, what went wrong, and any statute or regulator that applies in India. " +
	"Reply with the keywords only, comma separated, on one line."

// RetrievalPlanner turns a complaint into a block of relevant law. Every stage
// is best-effort and no failure reaches the caller.
type RetrievalPlanner struct {
	generator llm.Generator
	embedder  llm.Embedder
	searcher  LegalSearcher
	cfg       RetrievalConfig
	logger    *zap.Logger
}

// NewRetrievalPlanner creates a planner. Any collaborator may be nil, which degrades that stage.
func NewRetrievalPlanner(gen llm.Generator, emb llm.Embedder, searcher LegalSearcher, cfg RetrievalConfig, logger *zap.Logger) *RetrievalPlanner {
	if cfg.MatchCount <= 0 {
		cfg.MatchCount = DefaultMatchCount
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetrievalPlanner{generator: gen, embedder: emb, searcher: searcher, cfg: cfg, logger: logger}
}

// Plan runs expansion, embedding, search and assembly strictly in sequence
func (p *RetrievalPlanner) Plan(ctx context.Context, complaint string) RetrievalResult {
	var res RetrievalResult

	res.Expansion = p.expand(ctx, complaint)
	if res.Expansion.Degraded {
		retrievalDegradations.WithLabelValues("expansion").Inc()
		p.logger.Warn("query expansion failed, using raw complaint", zap.Error(res.Expansion.Err))
	}

	res.Embedding = p.embed(ctx, res.Expansion.Query)
	if res.Embedding.Zero {
		retrievalDegradations.WithLabelValues("embedding").Inc()
		p.logger.Warn("embedding failed, skipping similarity search", zap.Error(res.Embedding.Err))
	}

	res.Search = p.search(ctx, res.Embedding)
	if res.Search.Err != nil {
		retrievalDegradations.WithLabelValues("search").Inc()
		p.logger.Warn("legal document search failed, continuing without context", zap.Error(res.Search.Err))
	}

	res.Context = BuildLegalContextBlock(res.Search.Matches)
	p.logger.Debug("retrieval complete",
		zap.String("query", res.Expansion.Query),
		zap.Int("matches", len(res.Search.Matches)),
		zap.Bool("degraded", res.Degraded()))
	return res
}

func (p *RetrievalPlanner) expand(ctx context.Context, complaint string) ExpansionResult {
	raw := strings.TrimSpace(complaint)
	if p.generator == nil {
		return ExpansionResult{Query: raw, Degraded: true, Err: ErrNoGenerator}
	}

	ctx, cancel := withTimeout(ctx, p.cfg.ExpansionTimeout)
	defer cancel()

	resp, err := p.generator.Generate(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: expansionInstruction},
			{Role: llm.RoleUser, Content: raw},
		},
		Temperature: 0,
		MaxTokens:   64,
	})
	if err != nil {
		return ExpansionResult{Query: raw, Degraded: true, Err: err}
	}

	query := firstLine(resp.Text)
	if query == "" {
		return ExpansionResult{Query: raw, Degraded: true, Err: llm.ErrEmptyResponse}
	}
	return ExpansionResult{Query: query}
}

func (p *RetrievalPlanner) embed(ctx context.Context, query string) EmbeddingResult {
	dims := p.cfg.Dimensions
	if p.embedder != nil && p.embedder.Dimensions() > 0 {
		dims = p.embedder.Dimensions()
	}
	zero := func(err error) EmbeddingResult {
		return EmbeddingResult{Vector: make([]float32, dims), Zero: true, Err: err}
	}

	if p.embedder == nil {
		return zero(errNoEmbedder)
	}

	ctx, cancel := withTimeout(ctx, p.cfg.EmbeddingTimeout)
	defer cancel()

	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return zero(err)
	}
	if isZeroVector(vec) {
		return zero(errors.New("embedder returned a zero vector"))
	}
	return EmbeddingResult{Vector: vec}
}

func (p *RetrievalPlanner) search(ctx context.Context, emb EmbeddingResult) SearchResult {
	if emb.Zero {
		return SearchResult{Skipped: true}
	}
	if p.searcher == nil {
		return SearchResult{Skipped: true, Err: errNoSearcher}
	}

	ctx, cancel := withTimeout(ctx, p.cfg.SearchTimeout)
	defer cancel()

	matches, err := p.searcher.SearchSimilar(ctx, emb.Vector, p.cfg.MatchThreshold, p.cfg.MatchCount)
	if err != nil {
		return SearchResult{Err: err}
	}

	kept := matches[:0]
	for _, m := range matches {
		if m.Score >= p.cfg.MatchThreshold {
			kept = append(kept, m)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if len(kept) > p.cfg.MatchCount {
		kept = kept[:p.cfg.MatchCount]
	}
	return SearchResult{Matches: kept}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
