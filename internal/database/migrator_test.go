package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffee-backend/migrations"
)

func TestPendingFilesOrderAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"002_accounts.sql":    {Data: []byte("select 1;")},
		"001_requests.sql":    {Data: []byte("select 1;")},
		"999_reset_all.sql":   {Data: []byte("drop table x;")},
		"README.md":           {Data: []byte("notes")},
		"003_batches.sql":     {Data: []byte("select 1;")},
		"old/004_ignored.sql": {Data: []byte("select 1;")},
	}

	files, err := PendingFiles(fsys, ".", map[string]bool{"002_accounts.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"001_requests.sql", "003_batches.sql"}, files)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	files, err := PendingFiles(migrations.FS, ".", nil)
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "001_requests.sql", files[0])
}
