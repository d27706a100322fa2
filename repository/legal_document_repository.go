package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"karmaclaims-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LegalDocumentRepository handles database operations for embedded statutory text
type LegalDocumentRepository struct {
	db *pgxpool.Pool
}

// NewLegalDocumentRepository creates a new legal document repository
func NewLegalDocumentRepository(db *pgxpool.Pool) *LegalDocumentRepository {
	return &LegalDocumentRepository{db: db}
}

// formatVector formats an embedding as a pgvector literal
func formatVector(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', 6, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// SearchSimilar returns up to limit documents whose cosine similarity to the
// query vector is at least threshold, best match first
func (r *LegalDocumentRepository) SearchSimilar(
	ctx context.Context,
	embedding []float32,
	threshold float64,
	limit int,
) ([]models.LegalContextMatch, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is empty")
	}
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT
			act_name,
			content,
			industry_category,
			specific_penalty,
			1 - (embedding <=> $1::vector) AS similarity
		FROM legal_documents
		WHERE 1 - (embedding <=> $1::vector) >= $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, formatVector(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query legal documents: %w", err)
	}
	defer rows.Close()

	var matches []models.LegalContextMatch
	for rows.Next() {
		var m models.LegalContextMatch
		if err := rows.Scan(&m.ActName, &m.ClauseText, &m.IndustryCategory, &m.SpecificPenalty, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan legal document: %w", err)
		}
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating legal documents: %w", err)
	}

	return matches, nil
}

// CountBySource returns how many chunks of a source document are already stored
func (r *LegalDocumentRepository) CountBySource(ctx context.Context, sourceDocument string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM legal_documents WHERE source_document = $1", sourceDocument,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count legal documents: %w", err)
	}
	return count, nil
}

// InsertBatch stores every chunk of one source document in a single transaction
func (r *LegalDocumentRepository) InsertBatch(ctx context.Context, docs []models.LegalDocument) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO legal_documents (
			id, source_document, chunk_index, industry_category,
			act_name, specific_penalty, content, embedding
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector)`

	for _, doc := range docs {
		id := doc.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err := tx.Exec(ctx, query,
			id, doc.SourceDocument, doc.ChunkIndex, doc.IndustryCategory,
			doc.ActName, doc.SpecificPenalty, doc.Content, formatVector(doc.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d of %s: %w", doc.ChunkIndex, doc.SourceDocument, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
