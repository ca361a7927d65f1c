package booking

import (
    "context"
    "time"

    "github.com/iliyamo/slot-calendar/internal/model"
)

// Store runs a unit of work atomically.  Implementations must either commit
// every write made through tx or none of them, and must report a concurrent
// conflicting write as ErrTransactionConflict.  fn may be invoked more than
// once when the caller retries.
type Store interface {
    WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional view of the ledger and the reservation store.
// Lookups of missing rows return sql.ErrNoRows.  The Lock* methods hold the
// row until the transaction ends so that read-decide-write sequences on the
// same counter or reservation are serialised.
type Tx interface {
    LockCounter(ctx context.Context, key model.SlotKey) (model.SlotCounter, error)
    SetCounterCount(ctx context.Context, key model.SlotKey, count int, at time.Time) error

    LockReservation(ctx context.Context, id string) (model.Reservation, error)
    FindByIdempotencyKey(ctx context.Context, ownerID, key string) (model.Reservation, error)
    InsertReservation(ctx context.Context, r *model.Reservation) error
    UpdateReservation(ctx context.Context, r model.Reservation) error
    DeleteReservation(ctx context.Context, id string) error

    AppendHistory(ctx context.Context, h model.HistoryEntry) error
}

// Reader serves non-transactional reads of the reservation store.
type Reader interface {
    GetByID(ctx context.Context, id string) (model.Reservation, error)
    ListByOwner(ctx context.Context, ownerID string) ([]model.Reservation, error)
    ListRange(ctx context.Context, from, to string) ([]model.Reservation, error)
    ListHistory(ctx context.Context, reservationID string) ([]model.HistoryEntry, error)
}

// EventPublisher receives a history entry after its transaction commits.
type EventPublisher interface {
    Publish(ctx context.Context, h model.HistoryEntry) error
}
