package repository

import (
    "context"
    "database/sql"
    "sort"

    "github.com/google/uuid"

    "github.com/iliyamo/slot-calendar/internal/model"
)

// ReservationRepo provides persistence for reservations.  Writes happen only
// inside a transaction opened by TxStore; reads run directly on the pool.
// All timestamps are stored in UTC.
type ReservationRepo struct {
    db      *sql.DB
    dialect Dialect
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB, d Dialect) *ReservationRepo {
    return &ReservationRepo{db: db, dialect: d}
}

const reservationColumns = `id, slot_date, slot, owner_id, owner_display_name, status, notes, idempotency_key, created_at, updated_at`

func scanReservation(row rowScanner) (model.Reservation, error) {
    var (
        r   model.Reservation
        key sql.NullString
    )
    err := row.Scan(&r.ID, &r.Date, &r.Slot, &r.OwnerID, &r.OwnerDisplayName, &r.Status,
        &r.Notes, &key, sqlTime{&r.CreatedAt}, sqlTime{&r.UpdatedAt})
    if err != nil {
        return model.Reservation{}, err
    }
    r.IdempotencyKey = key.String
    return r, nil
}

func scanReservations(rows *sql.Rows) ([]model.Reservation, error) {
    defer rows.Close()
    out := make([]model.Reservation, 0)
    for rows.Next() {
        r, err := scanReservation(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, r)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    sort.SliceStable(out, func(i, j int) bool {
        if out[i].Date != out[j].Date {
            return out[i].Date < out[j].Date
        }
        return out[i].Slot.Index() < out[j].Slot.Index()
    })
    return out, nil
}

// InsertTx assigns a new id to res and inserts it within tx.
func (r *ReservationRepo) InsertTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
    res.ID = uuid.NewString()
    _, err := tx.ExecContext(ctx,
        `INSERT INTO reservations (`+reservationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
        res.ID, res.Date, string(res.Slot), res.OwnerID, res.OwnerDisplayName, string(res.Status),
        res.Notes, nullString(res.IdempotencyKey), res.CreatedAt.UTC(), res.UpdatedAt.UTC())
    return err
}

// GetForUpdateTx reads a reservation and locks it for the rest of tx.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?` + r.dialect.forUpdate()
    return scanReservation(tx.QueryRowContext(ctx, q, id))
}

// FindByIdempotencyKeyTx returns the owner's reservation created with key.
func (r *ReservationRepo) FindByIdempotencyKeyTx(ctx context.Context, tx *sql.Tx, ownerID, key string) (model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations WHERE owner_id = ? AND idempotency_key = ?`
    return scanReservation(tx.QueryRowContext(ctx, q, ownerID, key))
}

// UpdateTx writes the mutable fields of res.  Owner, idempotency key and
// creation time never change.
func (r *ReservationRepo) UpdateTx(ctx context.Context, tx *sql.Tx, res model.Reservation) error {
    result, err := tx.ExecContext(ctx,
        `UPDATE reservations SET slot_date = ?, slot = ?, owner_display_name = ?, status = ?, notes = ?, updated_at = ? WHERE id = ?`,
        res.Date, string(res.Slot), res.OwnerDisplayName, string(res.Status), res.Notes, res.UpdatedAt.UTC(), res.ID)
    if err != nil {
        return err
    }
    if n, err := result.RowsAffected(); err == nil && n == 0 {
        return sql.ErrNoRows
    }
    return nil
}

// DeleteTx hard-deletes a reservation.
func (r *ReservationRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id string) error {
    result, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
    if err != nil {
        return err
    }
    if n, err := result.RowsAffected(); err == nil && n == 0 {
        return sql.ErrNoRows
    }
    return nil
}

// GetByID fetches a reservation by id.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
    return scanReservation(r.db.QueryRowContext(ctx, q, id))
}

// ListByOwner returns every reservation made by ownerID.
func (r *ReservationRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.Reservation, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE owner_id = ? ORDER BY slot_date, created_at`,
        ownerID)
    if err != nil {
        return nil, err
    }
    return scanReservations(rows)
}

// ListRange returns every reservation dated within [from, to].  Dates are
// stored in canonical YYYY-MM-DD form, so string comparison is date order.
func (r *ReservationRepo) ListRange(ctx context.Context, from, to string) ([]model.Reservation, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE slot_date BETWEEN ? AND ? ORDER BY slot_date, created_at`,
        from, to)
    if err != nil {
        return nil, err
    }
    return scanReservations(rows)
}
