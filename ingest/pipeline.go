package ingest

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"karmaclaims-backend/llm"
	"karmaclaims-backend/models"
)

// DefaultPrefix is where the statutory PDFs live in storage
const DefaultPrefix = "legal"

// Source lists and reads raw documents. storage.Storage satisfies it.
type Source interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Download(ctx context.Context, storagePath string) (io.ReadCloser, error)
}

// DocumentStore persists embedded chunks. repository.LegalDocumentRepository satisfies it.
type DocumentStore interface {
	CountBySource(ctx context.Context, sourceDocument string) (int, error)
	InsertBatch(ctx context.Context, docs []models.LegalDocument) error
}

// Report summarises one ingestion run
type Report struct {
	Documents int
	Ingested  int
	Skipped   int
	Failed    int
	Chunks    int
}

// Pipeline ingests every PDF under a storage prefix
type Pipeline struct {
	source      Source
	store       DocumentStore
	embedder    llm.Embedder
	logger      *zap.Logger
	extract     func([]byte) (string, error)
	prefix      string
	concurrency int
	attempts    int
	baseDelay   time.Duration
	chunkSize   int
	minChunk    int
	force       bool
}

// Option is a functional option for Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithPrefix sets the storage prefix to scan
func WithPrefix(prefix string) Option {
	return func(p *Pipeline) { p.prefix = prefix }
}

// WithConcurrency bounds in-flight embedding calls
func WithConcurrency(n int) Option {
	return func(p *Pipeline) { p.concurrency = n }
}

// WithRetry sets the rate-limit retry policy for embedding calls
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) {
		p.attempts = attempts
		p.baseDelay = baseDelay
	}
}

// WithChunking overrides the chunk size and minimum chunk length
func WithChunking(size, minLen int) Option {
	return func(p *Pipeline) {
		p.chunkSize = size
		p.minChunk = minLen
	}
}

// WithForce re-ingests documents that are already stored
func WithForce(force bool) Option {
	return func(p *Pipeline) { p.force = force }
}

// WithTextExtractor replaces PDF text extraction
func WithTextExtractor(fn func([]byte) (string, error)) Option {
	return func(p *Pipeline) { p.extract = fn }
}

// NewPipeline creates an ingestion pipeline
func NewPipeline(source Source, store DocumentStore, embedder llm.Embedder, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:      source,
		store:       store,
		embedder:    embedder,
		logger:      zap.NewNop(),
		extract:     ExtractPDFText,
		prefix:      DefaultPrefix,
		concurrency: 4,
		attempts:    5,
		baseDelay:   10 * time.Second,
		chunkSize:   DefaultChunkSize,
		minChunk:    DefaultMinChunkLength,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	if p.attempts < 1 {
		p.attempts = 1
	}
	return p
}

// Run ingests every PDF under the prefix. A failing document is logged and
// counted, and the run continues with the next one.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	var report Report

	keys, err := p.source.List(ctx, p.prefix)
	if err != nil {
		return report, fmt.Errorf("failed to list source documents: %w", err)
	}

	for _, key := range keys {
		if !strings.EqualFold(path.Ext(key), ".pdf") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Documents++

		n, skipped, err := p.ingestDocument(ctx, key)
		switch {
		case err != nil:
			report.Failed++
			p.logger.Error("document failed", zap.String("document", key), zap.Error(err))
		case skipped:
			report.Skipped++
		default:
			report.Ingested++
			report.Chunks += n
		}
	}

	p.logger.Info("ingestion complete",
		zap.Int("documents", report.Documents),
		zap.Int("ingested", report.Ingested),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("chunks", report.Chunks))
	return report, nil
}

func (p *Pipeline) ingestDocument(ctx context.Context, key string) (int, bool, error) {
	source := path.Base(key)
	logger := p.logger.With(zap.String("document", source))

	if !p.force {
		count, err := p.store.CountBySource(ctx, source)
		if err != nil {
			return 0, false, err
		}
		if count > 0 {
			logger.Info("already ingested, skipping", zap.Int("chunks", count))
			return 0, true, nil
		}
	}

	rc, err := p.source.Download(ctx, key)
	if err != nil {
		return 0, false, err
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	text, err := p.extract(data)
	if err != nil {
		return 0, false, err
	}

	tag := TagForFile(source)
	chunks := ChunkText(text, p.chunkSize, p.minChunk)
	logger.Info("document tagged",
		zap.String("act", tag.Act),
		zap.String("industry", string(tag.Industry)),
		zap.Int("chunks", len(chunks)))
	if len(chunks) == 0 {
		return 0, false, ErrNoText
	}

	docs := make([]models.LegalDocument, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, chunk := range chunks {
		docs[i] = models.LegalDocument{
			ID:               uuid.New(),
			SourceDocument:   source,
			IndustryCategory: string(tag.Industry),
			ActName:          tag.Act,
			SpecificPenalty:  tag.Penalty,
			Content:          chunk.Text,
			ChunkIndex:       chunk.Index,
		}
		g.Go(func() error {
			vec, err := p.embedWithRetry(gctx, embeddingInput(tag, chunk.Text))
			if err != nil {
				return fmt.Errorf("chunk %d: %w", chunk.Index, err)
			}
			docs[i].Embedding = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, false, err
	}

	if err := p.store.InsertBatch(ctx, docs); err != nil {
		return 0, false, err
	}
	logger.Info("document ingested", zap.Int("chunks", len(docs)))
	return len(docs), false, nil
}

// embedWithRetry retries rate-limited calls with linear backoff
func (p *Pipeline) embedWithRetry(ctx context.Context, input string) ([]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if attempt > 1 {
			delay := p.baseDelay * time.Duration(attempt-1)
			p.logger.Warn("embedding rate limited, backing off", zap.Int("attempt", attempt), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		vec, err := p.embedder.Embed(ctx, input)
		if err == nil {
			return vec, nil
		}
		if !llm.IsRateLimited(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("embedding retries exhausted: %w", lastErr)
}

func embeddingInput(tag Tag, text string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[ACT: %s]\n", tag.Act)
	fmt.Fprintf(&sb, "[INDUSTRY: %s]\n\n", tag.Industry)
	sb.WriteString(text)
	return sb.String()
}
