package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrationFiles_SortedSQLOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_bookings.sql", "0001_users.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "0003_dir.sql"), 0o700))

	files, err := migrationFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_users.sql", "0002_bookings.sql"}, files)
}

func TestMigrationFiles_MissingDir(t *testing.T) {
	_, err := migrationFiles(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestUnapplied(t *testing.T) {
	files := []string{"0001_users.sql", "0002_bookings.sql", "0003_drivers.sql"}
	assert.Equal(t, []string{"0003_drivers.sql"}, unapplied(files, []string{"0001_users.sql", "0002_bookings.sql"}))
	assert.Nil(t, unapplied(files, files))
	assert.Equal(t, files, unapplied(files, nil))
}

func TestWaitForPing(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := waitForPing(ctx, "db", 3, zap.NewNop(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = waitForPing(ctx, "db", 2, zap.NewNop(), func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping db")
	assert.Equal(t, 2, calls)
}

func TestPing_NotConfigured(t *testing.T) {
	var pg *Postgres
	assert.ErrorIs(t, pg.Ping(context.Background()), ErrNotConfigured)
	assert.ErrorIs(t, (&Redis{}).Ping(context.Background()), ErrNotConfigured)
}
