package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"karmaclaims-backend/llm"
	"karmaclaims-backend/models"
	"karmaclaims-backend/service"
	"karmaclaims-backend/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DefaultMaxImageBytes caps inline and stored evidence images
const DefaultMaxImageBytes = 5 << 20

// GrievanceService is the drafting pipeline as seen by the HTTP layer
type GrievanceService interface {
	GenerateDraft(ctx context.Context, in models.ClaimInput) (*models.DraftResult, error)
	TriageTurn(ctx context.Context, req service.TriageRequest) (*service.TriageResult, error)
	Chat(ctx context.Context, req service.ChatRequest) (*service.ChatResult, error)
	RecordWin(ctx context.Context, amount float64) error
	Stats(ctx context.Context) (models.CaseStats, error)
	Companies() []models.CompanyProfile
}

// GrievanceHandler handles HTTP requests for drafting, triage and chat
type GrievanceHandler struct {
	service       GrievanceService
	storage       storage.Storage
	logger        *zap.Logger
	maxImageBytes int64
}

// NewGrievanceHandler creates a new grievance handler. store may be nil, which disables evidence_path.
func NewGrievanceHandler(svc GrievanceService, store storage.Storage, logger *zap.Logger, maxImageBytes int64) *GrievanceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImageBytes
	}
	return &GrievanceHandler{
		service:       svc,
		storage:       store,
		logger:        logger,
		maxImageBytes: maxImageBytes,
	}
}

// ImageInput is the optional image on a triage or chat request. ImageBase64
// may be raw base64 or a data URL.
type ImageInput struct {
	ImageBase64  string `json:"image_base64"`
	EvidencePath string `json:"evidence_path"`
}

// TriageRequest represents the request body for a triage turn
type TriageRequest struct {
	History   []models.TriageMessage `json:"history"`
	Message   string                 `json:"message"`
	UserEmail string                 `json:"user_email"`
	UserPhone string                 `json:"user_phone"`
	ImageInput
}

// ChatRequest represents the request body for a chat question
type ChatRequest struct {
	Message string `json:"message"`
	ImageInput
}

// RecordWinRequest represents the request body for recording a recovered amount
type RecordWinRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

// GenerateDraft handles POST /api/generate-draft
func (h *GrievanceHandler) GenerateDraft(c *gin.Context) {
	var req models.ClaimInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, string(service.KindValidation), "Request body must be a JSON claim")
		return
	}

	draft, err := h.service.GenerateDraft(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	respondOK(c, http.StatusOK, draft)
}

// Triage handles POST /api/triage
func (h *GrievanceHandler) Triage(c *gin.Context) {
	var req TriageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, string(service.KindValidation), "Request body must be a JSON triage turn")
		return
	}

	image, err := h.loadImage(c.Request.Context(), req.ImageInput)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	result, err := h.service.TriageTurn(c.Request.Context(), service.TriageRequest{
		History: req.History,
		Message: req.Message,
		Image:   image,
		Contact: models.ContactDetails{Email: req.UserEmail, Phone: req.UserPhone},
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	respondOK(c, http.StatusOK, result)
}

// Chat handles POST /api/chat
func (h *GrievanceHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, string(service.KindValidation), "Request body must be a JSON chat message")
		return
	}

	image, err := h.loadImage(c.Request.Context(), req.ImageInput)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	result, err := h.service.Chat(c.Request.Context(), service.ChatRequest{Message: req.Message, Image: image})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	respondOK(c, http.StatusOK, result)
}

// ListCompanies handles GET /api/companies
func (h *GrievanceHandler) ListCompanies(c *gin.Context) {
	respondOK(c, http.StatusOK, h.service.Companies())
}

// GetStats handles GET /api/stats
func (h *GrievanceHandler) GetStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to read case stats", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "STATS_UNAVAILABLE", "Statistics are unavailable right now")
		return
	}
	respondOK(c, http.StatusOK, stats)
}

// RecordWin handles POST /api/admin/wins
func (h *GrievanceHandler) RecordWin(c *gin.Context) {
	var req RecordWinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, string(service.KindValidation), "amount is required")
		return
	}

	if err := h.service.RecordWin(c.Request.Context(), req.Amount); err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			respondServiceError(c, h.logger, err)
			return
		}
		h.logger.Error("failed to record win", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "STATS_UNAVAILABLE", "Could not record the win")
		return
	}

	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.Status(http.StatusNoContent)
		return
	}
	respondOK(c, http.StatusOK, stats)
}

// loadImage resolves the optional image from inline base64 or stored evidence
func (h *GrievanceHandler) loadImage(ctx context.Context, in ImageInput) (*llm.Image, error) {
	inline := strings.TrimSpace(in.ImageBase64)
	path := strings.TrimSpace(in.EvidencePath)

	switch {
	case inline != "" && path != "":
		return nil, &service.ValidationError{Field: "image_base64", Message: "send either image_base64 or evidence_path, not both"}
	case inline != "":
		return h.decodeInlineImage(inline)
	case path != "":
		return h.readEvidenceImage(ctx, path)
	default:
		return nil, nil
	}
}

func (h *GrievanceHandler) decodeInlineImage(encoded string) (*llm.Image, error) {
	// data:image/png;base64,....
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.Index(encoded, ","); i >= 0 {
			encoded = encoded[i+1:]
		}
	}
	if int64(base64.StdEncoding.DecodedLen(len(encoded))) > h.maxImageBytes+2 {
		return nil, &service.ValidationError{Field: "image_base64", Message: "image is too large"}
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &service.ValidationError{Field: "image_base64", Message: "must be valid base64"}
	}
	return h.checkImage("image_base64", data)
}

func (h *GrievanceHandler) readEvidenceImage(ctx context.Context, path string) (*llm.Image, error) {
	if h.storage == nil {
		return nil, &service.ValidationError{Field: "evidence_path", Message: "evidence storage is not configured"}
	}

	rc, err := h.storage.Download(ctx, path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidPath) {
			return nil, &service.ValidationError{Field: "evidence_path", Message: "no evidence found at this path"}
		}
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, h.maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	return h.checkImage("evidence_path", data)
}

func (h *GrievanceHandler) checkImage(field string, data []byte) (*llm.Image, error) {
	if len(data) == 0 {
		return nil, &service.ValidationError{Field: field, Message: "image is empty"}
	}
	if int64(len(data)) > h.maxImageBytes {
		return nil, &service.ValidationError{Field: field, Message: "image is too large"}
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, &service.ValidationError{Field: field, Message: "must be a PNG, JPEG, GIF or WebP image"}
	}
	return &llm.Image{MIMEType: mimeType, Data: data}, nil
}
