package models

import (
	"time"

	"github.com/google/uuid"
)

// LegalDocument is one chunk of statutory text stored with its embedding
type LegalDocument struct {
	ID               uuid.UUID `json:"id"`
	SourceDocument   string    `json:"source_document"`
	IndustryCategory string    `json:"industry_category"`
	ActName          string    `json:"act_name"`
	SpecificPenalty  string    `json:"specific_penalty"`
	Content          string    `json:"content"`
	ChunkIndex       int       `json:"chunk_index"`
	Embedding        []float32 `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

// LegalContextMatch is a similarity hit from the legal document store
type LegalContextMatch struct {
	ActName          string  `json:"act_name"`
	ClauseText       string  `json:"clause_text"`
	Score            float64 `json:"score"`
	IndustryCategory string  `json:"industry_category,omitempty"`
	SpecificPenalty  string  `json:"specific_penalty,omitempty"`
}
