package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"karmaclaims-backend/models"
	"karmaclaims-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EvidencePrefix is the storage prefix for uploaded receipts and screenshots
const EvidencePrefix = "evidence"

// EvidenceRecorder persists evidence metadata
type EvidenceRecorder interface {
	Create(ctx context.Context, ev *models.Evidence) error
}

// EvidenceHandler handles evidence image uploads
type EvidenceHandler struct {
	storage     storage.Storage
	records     EvidenceRecorder
	logger      *zap.Logger
	maxFileSize int64
}

// NewEvidenceHandler creates a new evidence handler. records may be nil.
func NewEvidenceHandler(store storage.Storage, records EvidenceRecorder, logger *zap.Logger, maxFileSize int64) *EvidenceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxImageBytes
	}
	return &EvidenceHandler{
		storage:     store,
		records:     records,
		logger:      logger,
		maxFileSize: maxFileSize,
	}
}

// UploadEvidence handles POST /api/evidence
func (h *EvidenceHandler) UploadEvidence(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "File is required")
		return
	}

	if fileHeader.Size > h.maxFileSize {
		respondError(c, http.StatusBadRequest, "FILE_TOO_LARGE",
			fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxFileSize))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("failed to open upload", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "FILE_OPEN_ERROR", "Could not read the uploaded file")
		return
	}
	defer file.Close()

	// The declared Content-Type is not trusted, the first 512 bytes decide
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		respondError(c, http.StatusBadRequest, "FILE_OPEN_ERROR", "Could not read the uploaded file")
		return
	}
	head = head[:n]
	mimeType := http.DetectContentType(head)
	if !strings.HasPrefix(mimeType, "image/") {
		respondError(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "File type not allowed. Allowed types: PNG, JPEG, GIF, WebP")
		return
	}

	evidence := &models.Evidence{
		ID:        uuid.New(),
		Filename:  fileHeader.Filename,
		MimeType:  mimeType,
		Size:      fileHeader.Size,
		CreatedAt: time.Now().UTC(),
	}

	body := io.MultiReader(bytes.NewReader(head), file)
	evidence.StoragePath, err = h.storage.Upload(c.Request.Context(), EvidencePrefix, evidence.ID, fileHeader.Filename, body)
	if err != nil {
		h.logger.Error("failed to store evidence", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to store the file")
		return
	}

	if h.records != nil {
		if err := h.records.Create(c.Request.Context(), evidence); err != nil {
			h.logger.Error("failed to record evidence", zap.Error(err))
			if delErr := h.storage.Delete(c.Request.Context(), evidence.StoragePath); delErr != nil {
				h.logger.Warn("failed to clean up stored evidence", zap.Error(delErr))
			}
			respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to save the file record")
			return
		}
	}

	h.logger.Info("evidence stored",
		zap.String("id", evidence.ID.String()),
		zap.String("mime_type", mimeType),
		zap.Int64("size", evidence.Size))
	respondOK(c, http.StatusCreated, evidence)
}
