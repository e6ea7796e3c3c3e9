// Package dbtest opens throwaway SQLite-backed stores for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	db "github.com/markdave123-py/lessontutor/internal/core/database"
)

// Open returns a bootstrapped store in a temp directory, closed on cleanup.
func Open(t *testing.T) *db.DatabaseClient {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tutor.db")
	client, err := db.Open(context.Background(), "sqlite://"+path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}
