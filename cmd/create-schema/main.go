package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"karmaclaims-backend/logging"
)

type statement struct {
	name     string
	sql      string
	optional bool // failures are logged, not fatal
}

func schemaStatements(dims int, reset bool) []statement {
	var stmts []statement
	stmts = append(stmts, statement{name: "pgvector extension", sql: "CREATE EXTENSION IF NOT EXISTS vector", optional: true})
	if reset {
		stmts = append(stmts, statement{name: "drop legal_documents", sql: "DROP TABLE IF EXISTS legal_documents CASCADE"})
	}

	stmts = append(stmts,
		statement{name: "legal_documents table", sql: fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS legal_documents (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    source_document VARCHAR(255) NOT NULL,
    chunk_index INTEGER NOT NULL,
    industry_category VARCHAR(100) NOT NULL,
    act_name TEXT NOT NULL,
    specific_penalty TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    embedding vector(%d) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT legal_documents_chunk_unique UNIQUE (source_document, chunk_index)
)`, dims)},
		statement{name: "vector similarity index (HNSW)", sql: `
CREATE INDEX IF NOT EXISTS idx_legal_documents_embedding ON legal_documents
USING hnsw (embedding vector_cosine_ops)
WITH (m = 16, ef_construction = 64)`, optional: true},
		statement{name: "source document index", sql: "CREATE INDEX IF NOT EXISTS idx_legal_documents_source ON legal_documents(source_document)", optional: true},
		statement{name: "industry index", sql: "CREATE INDEX IF NOT EXISTS idx_legal_documents_industry ON legal_documents(industry_category)", optional: true},

		statement{name: "case_stats table", sql: `
CREATE TABLE IF NOT EXISTS case_stats (
    id SMALLINT PRIMARY KEY CHECK (id = 1),
    drafts_generated BIGINT NOT NULL DEFAULT 0,
    cases_won BIGINT NOT NULL DEFAULT 0,
    amount_recovered NUMERIC(14, 2) NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`},
		statement{name: "evidence table", sql: `
CREATE TABLE IF NOT EXISTS evidence (
    id UUID PRIMARY KEY,
    filename VARCHAR(255) NOT NULL,
    mime_type VARCHAR(100) NOT NULL,
    size BIGINT NOT NULL,
    storage_path TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`},
		statement{name: "case_stats row", sql: "INSERT INTO case_stats (id) VALUES (1) ON CONFLICT (id) DO NOTHING"},
	)
	return stmts
}

func main() {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("EMBEDDING_DIMENSIONS", 768)

	var reset bool
	cmd := &cobra.Command{
		Use:          "create-schema",
		Short:        "Create the legal document and case statistics tables",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New("info", "development")
			if err != nil {
				return err
			}
			defer logger.Sync()

			dsn := v.GetString("DATABASE_URL")
			if dsn == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			return createSchema(cmd.Context(), logger, dsn, v.GetInt("EMBEDDING_DIMENSIONS"), reset)
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "drop legal_documents before creating it (destroys ingested data)")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func createSchema(ctx context.Context, logger *zap.Logger, dsn string, dims int, reset bool) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	for _, stmt := range schemaStatements(dims, reset) {
		if _, err := pool.Exec(ctx, stmt.sql); err != nil {
			if stmt.optional {
				logger.Warn("schema step failed", zap.String("step", stmt.name), zap.Error(err))
				continue
			}
			return fmt.Errorf("%s: %w", stmt.name, err)
		}
		logger.Info("schema step applied", zap.String("step", stmt.name))
	}

	logger.Info("database schema ready", zap.Int("embedding_dimensions", dims))
	return nil
}
