package repository

import (
    "context"
    "database/sql"
    "encoding/json"

    "github.com/iliyamo/slot-calendar/internal/model"
)

// HistoryRepo stores the audit trail of reservation changes.  Snapshots of
// the reservation before and after each change are kept as JSON text.
type HistoryRepo struct{ db *sql.DB }

func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

// AppendTx inserts h within tx.
func (r *HistoryRepo) AppendTx(ctx context.Context, tx *sql.Tx, h model.HistoryEntry) error {
    before, err := marshalSnapshot(h.Before)
    if err != nil {
        return err
    }
    after, err := marshalSnapshot(h.After)
    if err != nil {
        return err
    }
    _, err = tx.ExecContext(ctx,
        `INSERT INTO reservation_history (reservation_id, action, before_state, after_state, changed_by, changed_at) VALUES (?, ?, ?, ?, ?, ?)`,
        h.ReservationID, string(h.Action), before, after, h.ChangedBy, h.ChangedAt.UTC())
    return err
}

// ListByReservation returns the entries of a reservation, oldest first.
func (r *HistoryRepo) ListByReservation(ctx context.Context, reservationID string) ([]model.HistoryEntry, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, reservation_id, action, before_state, after_state, changed_by, changed_at
           FROM reservation_history WHERE reservation_id = ? ORDER BY id`,
        reservationID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []model.HistoryEntry
    for rows.Next() {
        var (
            h             model.HistoryEntry
            before, after sql.NullString
        )
        if err := rows.Scan(&h.ID, &h.ReservationID, &h.Action, &before, &after, &h.ChangedBy, sqlTime{&h.ChangedAt}); err != nil {
            return nil, err
        }
        if h.Before, err = unmarshalSnapshot(before); err != nil {
            return nil, err
        }
        if h.After, err = unmarshalSnapshot(after); err != nil {
            return nil, err
        }
        out = append(out, h)
    }
    return out, rows.Err()
}

func marshalSnapshot(r *model.Reservation) (any, error) {
    if r == nil {
        return nil, nil
    }
    b, err := json.Marshal(r)
    if err != nil {
        return nil, err
    }
    return string(b), nil
}

func unmarshalSnapshot(s sql.NullString) (*model.Reservation, error) {
    if !s.Valid || s.String == "" {
        return nil, nil
    }
    var r model.Reservation
    if err := json.Unmarshal([]byte(s.String), &r); err != nil {
        return nil, err
    }
    return &r, nil
}
