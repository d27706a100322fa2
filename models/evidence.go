package models

import (
	"time"

	"github.com/google/uuid"
)

// Evidence is an uploaded receipt or screenshot
type Evidence struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	StoragePath string    `json:"storage_path"`
	CreatedAt   time.Time `json:"created_at"`
}
