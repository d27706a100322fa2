package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"karmaclaims-backend/config"
	"karmaclaims-backend/handlers"
	"karmaclaims-backend/llm"
	"karmaclaims-backend/logging"
	"karmaclaims-backend/policy"
	"karmaclaims-backend/repository"
	"karmaclaims-backend/service"
	"karmaclaims-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Generation and embedding backends
	providers := llm.NewProviders(cfg.Providers())
	defer providers.Close()

	generator, err := providers.Generator(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize %s generator: %w", cfg.LLMProvider, err)
	}
	embedder, err := providers.Embedder(ctx, llm.PurposeQuery)
	if err != nil {
		return fmt.Errorf("failed to initialize %s embedder: %w", cfg.EmbeddingProvider, err)
	}
	logger.Info("llm providers ready",
		zap.String("generation", cfg.LLMProvider),
		zap.String("text_model", cfg.TextModel),
		zap.String("vision_model", cfg.VisionModel),
		zap.String("embedding", cfg.EmbeddingProvider))

	// Reference data
	directory, err := loadDirectory(cfg.CompanyDirectoryPath)
	if err != nil {
		return err
	}
	policies, err := loadPolicies(cfg.PolicyPath)
	if err != nil {
		return err
	}

	opts := []service.DraftServiceOption{
		service.DraftWithGenerator(generator),
		service.DraftWithCompanyDirectory(directory),
		service.DraftWithPolicies(policies),
		service.DraftWithLogger(logger.Named("draft")),
		service.DraftWithRetryConfig(service.RetryConfig{Attempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay}),
		service.DraftWithRetrievalConfig(service.RetrievalConfig{
			MatchThreshold:   cfg.MatchThreshold,
			MatchCount:       cfg.MatchCount,
			Dimensions:       cfg.EmbeddingDimensions,
			ExpansionTimeout: cfg.ExpansionTimeout,
			EmbeddingTimeout: cfg.EmbeddingTimeout,
			SearchTimeout:    cfg.SearchTimeout,
		}),
		service.DraftWithGenerationTimeout(cfg.GenerationTimeout),
		service.DraftWithMaxComplaintLength(cfg.MaxComplaintLength),
	}
	if embedder != nil {
		opts = append(opts, service.DraftWithEmbedder(embedder))
	}

	// Postgres backs retrieval and the dashboard counters. Without it the
	// service drafts with generic framing and counts in memory.
	var evidenceRecords handlers.EvidenceRecorder
	if cfg.DatabaseURL != "" {
		db, err := initPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize postgres: %w", err)
		}
		defer db.Close()

		opts = append(opts,
			service.DraftWithLegalSearcher(repository.NewLegalDocumentRepository(db)),
			service.DraftWithCaseCounter(repository.NewCaseStatsRepository(db)),
		)
		evidenceRecords = repository.NewEvidenceRepository(db)
	} else {
		logger.Warn("DATABASE_URL not set, legal retrieval disabled and stats kept in memory")
	}

	draftService, err := service.NewDraftService(opts...)
	if err != nil {
		return err
	}

	evidenceStore, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info("storage initialized", zap.String("type", string(cfg.Storage.Type)))

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.AdminTokenHash == "" {
		logger.Warn("ADMIN_TOKEN_HASH not set, admin endpoints will reject every request")
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Grievance:      handlers.NewGrievanceHandler(draftService, evidenceStore, logger.Named("http"), cfg.MaxImageBytes),
		Evidence:       handlers.NewEvidenceHandler(evidenceStore, evidenceRecords, logger.Named("evidence"), cfg.MaxImageBytes),
		Logger:         logger.Named("http"),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		AdminTokenHash: cfg.AdminTokenHash,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadDirectory(path string) (*repository.CompanyDirectory, error) {
	if path == "" {
		return repository.NewCompanyDirectory()
	}
	dir, err := repository.LoadCompanyDirectory(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load company directory %s: %w", path, err)
	}
	return dir, nil
}

func loadPolicies(path string) (*policy.Set, error) {
	if path == "" {
		return policy.Default()
	}
	set, err := policy.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load policies %s: %w", path, err)
	}
	return set, nil
}

func initPostgres(ctx context.Context, connString string, logger *zap.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		logger.Warn("failed to create pgvector extension, it may already exist or need superuser privileges", zap.Error(err))
	}

	logger.Info("postgres connection established")
	return pool, nil
}
