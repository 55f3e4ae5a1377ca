package migrations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetInitialSchema_FallsBackToCompiledIn(t *testing.T) {
	orig := MigrationsDir
	MigrationsDir = filepath.Join(t.TempDir(), "does-not-exist")
	defer func() { MigrationsDir = orig }()

	schema, err := GetInitialSchema()
	require.NoError(t, err)
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS queued_messages")
	assert.Contains(t, schema, "next_retry_at")
}

func TestGetInitialSchema_ReadsFromDisk(t *testing.T) {
	orig := MigrationsDir
	dir := t.TempDir()
	MigrationsDir = dir
	defer func() { MigrationsDir = orig }()

	custom := "CREATE TABLE IF NOT EXISTS queued_messages (id TEXT PRIMARY KEY);"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_initial_schema.sql"), []byte(custom), 0600))

	schema, err := GetInitialSchema()
	require.NoError(t, err)
	assert.Equal(t, custom, schema)
}
