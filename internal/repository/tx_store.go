package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/slot-calendar/internal/booking"
    "github.com/iliyamo/slot-calendar/internal/model"
)

// TxStore runs reservation protocol steps inside one database transaction.
// It implements booking.Store on top of the counter, reservation and
// history repositories.
type TxStore struct {
    db           *sql.DB
    counters     *SlotCounterRepo
    reservations *ReservationRepo
    history      *HistoryRepo
}

// NewTxStore returns a TxStore over db.
func NewTxStore(db *sql.DB, counters *SlotCounterRepo, reservations *ReservationRepo, history *HistoryRepo) *TxStore {
    return &TxStore{db: db, counters: counters, reservations: reservations, history: history}
}

// WithinTx begins a transaction, hands fn a view bound to it and commits
// when fn returns nil.  Any error rolls the whole unit back; engine
// conflicts come back as booking.ErrTransactionConflict.
func (s *TxStore) WithinTx(ctx context.Context, fn func(booking.Tx) error) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return mapError(err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    if err := fn(&txView{tx: tx, s: s}); err != nil {
        return mapError(err)
    }
    if err := tx.Commit(); err != nil {
        return mapError(err)
    }
    committed = true
    return nil
}

type txView struct {
    tx *sql.Tx
    s  *TxStore
}

func (v *txView) LockCounter(ctx context.Context, key model.SlotKey) (model.SlotCounter, error) {
    return v.s.counters.GetForUpdateTx(ctx, v.tx, key)
}

func (v *txView) SetCounterCount(ctx context.Context, key model.SlotKey, count int, at time.Time) error {
    return v.s.counters.SetCountTx(ctx, v.tx, key, count, at)
}

func (v *txView) LockReservation(ctx context.Context, id string) (model.Reservation, error) {
    return v.s.reservations.GetForUpdateTx(ctx, v.tx, id)
}

func (v *txView) FindByIdempotencyKey(ctx context.Context, ownerID, key string) (model.Reservation, error) {
    return v.s.reservations.FindByIdempotencyKeyTx(ctx, v.tx, ownerID, key)
}

func (v *txView) InsertReservation(ctx context.Context, r *model.Reservation) error {
    return v.s.reservations.InsertTx(ctx, v.tx, r)
}

func (v *txView) UpdateReservation(ctx context.Context, r model.Reservation) error {
    return v.s.reservations.UpdateTx(ctx, v.tx, r)
}

func (v *txView) DeleteReservation(ctx context.Context, id string) error {
    return v.s.reservations.DeleteTx(ctx, v.tx, id)
}

func (v *txView) AppendHistory(ctx context.Context, h model.HistoryEntry) error {
    return v.s.history.AppendTx(ctx, v.tx, h)
}

// Reader joins the reservation and history read paths into a booking.Reader.
type Reader struct {
    *ReservationRepo
    History *HistoryRepo
}

// ListHistory returns the audit trail of one reservation.
func (r Reader) ListHistory(ctx context.Context, reservationID string) ([]model.HistoryEntry, error) {
    return r.History.ListByReservation(ctx, reservationID)
}
