package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig carries the handlers and middleware settings for NewRouter
type RouterConfig struct {
	Grievance      *GrievanceHandler
	Evidence       *EvidenceHandler // nil disables uploads
	Logger         *zap.Logger
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	AdminTokenHash string
}

// NewRouter builds the gin engine with every route registered
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}))
	r.Use(RequestLogger(logger))
	r.Use(CORS(cfg.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/companies", cfg.Grievance.ListCompanies)
		api.GET("/stats", cfg.Grievance.GetStats)

		// Generation endpoints share a per-client budget
		limited := api.Group("")
		if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst > 0 {
			limited.Use(RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}
		limited.POST("/generate-draft", cfg.Grievance.GenerateDraft)
		limited.POST("/triage", cfg.Grievance.Triage)
		limited.POST("/chat", cfg.Grievance.Chat)
		if cfg.Evidence != nil {
			limited.POST("/evidence", cfg.Evidence.UploadEvidence)
		}

		admin := api.Group("/admin", AdminAuth(cfg.AdminTokenHash, logger))
		admin.POST("/wins", cfg.Grievance.RecordWin)
	}

	return r
}
