package models

import "time"

// CaseStats is the aggregate counter snapshot shown on the public dashboard
type CaseStats struct {
	DraftsGenerated int64     `json:"drafts_generated"`
	CasesWon        int64     `json:"cases_won"`
	AmountRecovered float64   `json:"amount_recovered"`
	UpdatedAt       time.Time `json:"updated_at"`
}
