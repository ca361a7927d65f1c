package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectUnsupportedDriver(t *testing.T) {
	_, err := Connect(Options{Driver: "oracle"})
	assert.Error(t, err)
}

func TestMigrateSQLiteIsIdempotent(t *testing.T) {
	db, err := Connect(Options{Driver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "m.db")})
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db, DriverSQLite))
	require.NoError(t, Migrate(ctx, db, DriverSQLite))

	var n int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('users','refresh_tokens','slot_counters','reservations','reservation_history')`).Scan(&n))
	assert.Equal(t, 5, n)

	_, err = db.ExecContext(ctx, `INSERT INTO slot_counters (slot_key, slot_date, slot, booked_count, capacity, updated_at) VALUES ('k', '2025-06-01', 'morning', -1, 1, '2025-06-01 00:00:00')`)
	assert.Error(t, err, "negative counts are rejected by the schema")
}
