package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB opens an in-memory database closed at test cleanup.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{Path: MemoryPath, BusyTimeout: 5})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func TestOpenFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "flashlight.db")

	db, err := Open(Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck // Test cleanup

	_, err = db.ExecContext(context.Background(), "CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist")
	assert.Equal(t, dbPath, db.Path())
}

func TestOpenInMemory(t *testing.T) {
	for _, path := range []string{MemoryPath, ""} {
		db, err := Open(Config{Path: path, WALMode: true})
		require.NoError(t, err)

		assert.Equal(t, MemoryPath, db.Path())
		assert.NoError(t, db.HealthCheck(context.Background()))
		require.NoError(t, db.Close())
	}

	_, err := os.Stat(MemoryPath)
	assert.True(t, os.IsNotExist(err), "no file should be created for an in-memory database")
}

func TestInMemoryDataSurvivesAcrossStatements(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO t (v) VALUES (42)")
	require.NoError(t, err)

	var v int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT v FROM t").Scan(&v))
	assert.Equal(t, 42, v)
}

func TestConnectionString(t *testing.T) {
	tests := []struct {
		name string
		path string
		cfg  Config
		want string
	}{
		{
			name: "file with WAL",
			path: "/tmp/f.db",
			cfg:  Config{WALMode: true, BusyTimeout: 5},
			want: "file:/tmp/f.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL",
		},
		{
			name: "memory ignores WAL",
			path: MemoryPath,
			cfg:  Config{WALMode: true, BusyTimeout: 1},
			want: "file::memory:?_busy_timeout=1000&_foreign_keys=on",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, connectionString(tt.path, tt.cfg))
		})
	}
}

func TestClose(t *testing.T) {
	db, err := Open(Config{Path: MemoryPath})
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.Error(t, db.HealthCheck(context.Background()))

	var zero DB
	assert.NoError(t, zero.Close())
}

func TestExecContextWrapsErrors(t *testing.T) {
	db := openTestDB(t)

	_, err := db.ExecContext(context.Background(), "INSERT INTO missing_table VALUES (1)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executing query")
}

func TestBeginTxRollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, "INSERT INTO t (v) VALUES (1)")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&count))
	assert.Zero(t, count)
}
