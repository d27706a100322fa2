package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements(768, false)

	var all strings.Builder
	for _, s := range stmts {
		all.WriteString(s.sql)
		assert.NotContains(t, s.sql, "DROP TABLE")
	}
	sql := all.String()
	assert.Contains(t, sql, "embedding vector(768) NOT NULL")
	assert.Contains(t, sql, "vector_cosine_ops")
	assert.Contains(t, sql, "INSERT INTO case_stats (id) VALUES (1)")

	withReset := schemaStatements(384, true)
	assert.Len(t, withReset, len(stmts)+1)
	assert.Contains(t, withReset[1].sql, "DROP TABLE IF EXISTS legal_documents")
	assert.Contains(t, withReset[2].sql, "vector(384)")
}
