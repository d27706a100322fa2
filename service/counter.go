package service

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"karmaclaims-backend/models"
)

// CaseCounter tracks dashboard statistics. Implementations must be safe for
// concurrent use and increment atomically.
type CaseCounter interface {
	RecordDraft(ctx context.Context) error
	RecordWin(ctx context.Context, amount float64) error
	Snapshot(ctx context.Context) (models.CaseStats, error)
}

// AtomicCaseCounter is an in-process CaseCounter
type AtomicCaseCounter struct {
	drafts    atomic.Int64
	wins      atomic.Int64
	paise     atomic.Int64 // recovered amount in hundredths of a rupee
	updatedAt atomic.Int64 // unix nanos
}

// NewAtomicCaseCounter creates a zeroed counter
func NewAtomicCaseCounter() *AtomicCaseCounter {
	return &AtomicCaseCounter{}
}

func (c *AtomicCaseCounter) RecordDraft(_ context.Context) error {
	c.drafts.Add(1)
	c.touch()
	return nil
}

func (c *AtomicCaseCounter) RecordWin(_ context.Context, amount float64) error {
	c.wins.Add(1)
	if amount > 0 {
		c.paise.Add(int64(math.Round(amount * 100)))
	}
	c.touch()
	return nil
}

func (c *AtomicCaseCounter) Snapshot(_ context.Context) (models.CaseStats, error) {
	stats := models.CaseStats{
		DraftsGenerated: c.drafts.Load(),
		CasesWon:        c.wins.Load(),
		AmountRecovered: float64(c.paise.Load()) / 100,
	}
	if ts := c.updatedAt.Load(); ts > 0 {
		stats.UpdatedAt = time.Unix(0, ts).UTC()
	}
	return stats, nil
}

func (c *AtomicCaseCounter) touch() {
	c.updatedAt.Store(time.Now().UnixNano())
}
