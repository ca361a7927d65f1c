package repository

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestSQLTimeScan(t *testing.T) {
    want := time.Date(2025, 6, 1, 8, 30, 15, 500000000, time.UTC)
    inputs := []any{
        want,
        want.In(time.FixedZone("CEST", 2*3600)),
        "2025-06-01 08:30:15.5+00:00",
        "2025-06-01T10:30:15.5+02:00",
        []byte("2025-06-01 08:30:15.5 +0000 UTC"),
    }
    for _, in := range inputs {
        var got time.Time
        require.NoError(t, sqlTime{&got}.Scan(in), "%v", in)
        assert.True(t, want.Equal(got), "%v", in)
        assert.Equal(t, time.UTC, got.Location())
    }

    var got time.Time
    assert.Error(t, sqlTime{&got}.Scan("yesterday"))
    assert.Error(t, sqlTime{&got}.Scan(42))
}

func TestSQLNullTimeScan(t *testing.T) {
    p := new(time.Time)
    require.NoError(t, sqlNullTime{&p}.Scan(nil))
    assert.Nil(t, p)
    require.NoError(t, sqlNullTime{&p}.Scan("2025-06-01 08:30:15"))
    require.NotNil(t, p)
    assert.Equal(t, 2025, p.Year())
}

func TestNullString(t *testing.T) {
    assert.Nil(t, nullString(""))
    assert.Equal(t, "k", nullString("k"))
}

func TestDialect(t *testing.T) {
    assert.Equal(t, " FOR UPDATE", MySQL.forUpdate())
    assert.Empty(t, SQLite.forUpdate())
    assert.Equal(t, "INSERT IGNORE", MySQL.insertIgnore())
    assert.Equal(t, "INSERT OR IGNORE", SQLite.insertIgnore())
}
