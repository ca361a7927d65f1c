// Package testfixtures wires the repositories to a throwaway SQLite file so
// tests exercise the real SQL and transaction paths.
package testfixtures

import (
    "context"
    "database/sql"
    "path/filepath"
    "testing"
    "time"

    "github.com/stretchr/testify/require"

    "github.com/iliyamo/slot-calendar/internal/database"
    "github.com/iliyamo/slot-calendar/internal/repository"
)

// Fixture bundles a migrated database with its repositories.
type Fixture struct {
    DB           *sql.DB
    Counters     *repository.SlotCounterRepo
    Reservations *repository.ReservationRepo
    History      *repository.HistoryRepo
    Users        *repository.UserRepo
    Tokens       *repository.TokenRepo
    Store        *repository.TxStore
    Reader       repository.Reader
}

// NewSQLite creates a fresh database under t.TempDir.  It is closed when
// the test ends.
func NewSQLite(t testing.TB) *Fixture {
    t.Helper()
    db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "calendar.db"))
    require.NoError(t, err)
    t.Cleanup(func() { _ = db.Close() })
    require.NoError(t, database.Migrate(context.Background(), db, database.DriverSQLite))

    f := &Fixture{
        DB:           db,
        Counters:     repository.NewSlotCounterRepo(db, repository.SQLite),
        Reservations: repository.NewReservationRepo(db, repository.SQLite),
        History:      repository.NewHistoryRepo(db),
        Users:        repository.NewUserRepo(db),
        Tokens:       repository.NewTokenRepo(db),
    }
    f.Store = repository.NewTxStore(db, f.Counters, f.Reservations, f.History)
    f.Reader = repository.Reader{ReservationRepo: f.Reservations, History: f.History}
    return f
}

// Provision opens every slot of dates with the given capacity.
func (f *Fixture) Provision(t testing.TB, capacity int, dates ...string) {
    t.Helper()
    _, err := f.Counters.Provision(context.Background(), dates, capacity, time.Now().UTC())
    require.NoError(t, err)
}
