package repository

import (
	"context"
	"fmt"

	"karmaclaims-backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CaseStatsRepository keeps the dashboard counters in a single-row table.
// Every write is an atomic in-place increment.
type CaseStatsRepository struct {
	db *pgxpool.Pool
}

// NewCaseStatsRepository creates a new case stats repository
func NewCaseStatsRepository(db *pgxpool.Pool) *CaseStatsRepository {
	return &CaseStatsRepository{db: db}
}

// RecordDraft increments the generated-drafts counter
func (r *CaseStatsRepository) RecordDraft(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		UPDATE case_stats
		SET drafts_generated = drafts_generated + 1, updated_at = NOW()
		WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to record draft: %w", err)
	}
	return nil
}

// RecordWin increments the won-cases counter and adds the recovered amount
func (r *CaseStatsRepository) RecordWin(ctx context.Context, amount float64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE case_stats
		SET cases_won = cases_won + 1,
			amount_recovered = amount_recovered + $1,
			updated_at = NOW()
		WHERE id = 1`, amount)
	if err != nil {
		return fmt.Errorf("failed to record win: %w", err)
	}
	return nil
}

// Snapshot reads the current counters
func (r *CaseStatsRepository) Snapshot(ctx context.Context) (models.CaseStats, error) {
	var stats models.CaseStats
	err := r.db.QueryRow(ctx, `
		SELECT drafts_generated, cases_won, amount_recovered::float8, updated_at
		FROM case_stats
		WHERE id = 1`,
	).Scan(&stats.DraftsGenerated, &stats.CasesWon, &stats.AmountRecovered, &stats.UpdatedAt)
	if err != nil {
		return models.CaseStats{}, fmt.Errorf("failed to read case stats: %w", err)
	}
	return stats, nil
}
