package handlers

import (
	"net/http"

	"karmaclaims-backend/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// statusFor maps a user-facing error kind to its HTTP status
func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation, service.KindPromptInjection:
		return http.StatusBadRequest
	case service.KindServiceBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError logs the raw error and sends only the user-facing message
func respondServiceError(c *gin.Context, logger *zap.Logger, err error) {
	ufe := service.AsUserFacing(err)
	status := statusFor(ufe.Kind())

	fields := []zap.Field{
		zap.String("path", c.FullPath()),
		zap.String("kind", string(ufe.Kind())),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", fields...)
	} else {
		logger.Info("request rejected", fields...)
	}

	respondError(c, status, string(ufe.Kind()), ufe.UserMessage())
}
