package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"karmaclaims-backend/config"
	"karmaclaims-backend/ingest"
	"karmaclaims-backend/llm"
	"karmaclaims-backend/logging"
	"karmaclaims-backend/repository"
	"karmaclaims-backend/storage"
)

type options struct {
	prefix      string
	concurrency int
	force       bool
	chunkSize   int
	minChunk    int
	retryDelay  time.Duration
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:   "ingest-legal",
		Short: "Embed statutory PDFs into the legal document store",
		Long: "Lists every PDF under the storage prefix, tags it by filename, splits it into\n" +
			"chunks, embeds each chunk and stores the batch. Documents already in the\n" +
			"store are skipped unless --force is set.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.prefix, "prefix", ingest.DefaultPrefix, "storage prefix holding the PDFs")
	f.IntVar(&opts.concurrency, "concurrency", 4, "maximum in-flight embedding calls")
	f.BoolVar(&opts.force, "force", false, "re-ingest documents that are already stored")
	f.IntVar(&opts.chunkSize, "chunk-size", ingest.DefaultChunkSize, "characters per chunk")
	f.IntVar(&opts.minChunk, "min-chunk", ingest.DefaultMinChunkLength, "drop chunks shorter than this")
	f.DurationVar(&opts.retryDelay, "retry-delay", 10*time.Second, "base backoff after a rate-limited embedding call")
	return cmd
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for ingestion")
	}

	source, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach database: %w", err)
	}

	providers := llm.NewProviders(cfg.Providers())
	defer providers.Close()
	embedder, err := providers.Embedder(ctx, llm.PurposeDocument)
	if err != nil {
		return err
	}
	if embedder == nil {
		return errors.New("EMBEDDING_PROVIDER=none cannot be used for ingestion")
	}

	pipeline := ingest.NewPipeline(source, repository.NewLegalDocumentRepository(pool), embedder,
		ingest.WithLogger(logger),
		ingest.WithPrefix(opts.prefix),
		ingest.WithConcurrency(opts.concurrency),
		ingest.WithForce(opts.force),
		ingest.WithChunking(opts.chunkSize, opts.minChunk),
		ingest.WithRetry(cfg.RetryAttempts+2, opts.retryDelay),
	)

	report, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		logger.Warn("some documents failed", zap.Int("failed", report.Failed))
		return fmt.Errorf("%d of %d documents failed", report.Failed, report.Documents)
	}
	return nil
}
