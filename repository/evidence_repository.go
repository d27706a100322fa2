package repository

import (
	"context"
	"fmt"

	"karmaclaims-backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EvidenceRepository records uploaded evidence metadata. The bytes live in storage.
type EvidenceRepository struct {
	db *pgxpool.Pool
}

// NewEvidenceRepository creates a new evidence repository
func NewEvidenceRepository(db *pgxpool.Pool) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// Create inserts an evidence record and fills in its creation time
func (r *EvidenceRepository) Create(ctx context.Context, ev *models.Evidence) error {
	query := `
		INSERT INTO evidence (
			id, filename, mime_type, size, storage_path
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRow(
		ctx, query,
		ev.ID,
		ev.Filename,
		ev.MimeType,
		ev.Size,
		ev.StoragePath,
	).Scan(&ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save evidence record: %w", err)
	}
	return nil
}
