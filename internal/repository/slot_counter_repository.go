package repository

import (
    "context"
    "database/sql"
    "sort"
    "time"

    "github.com/iliyamo/slot-calendar/internal/model"
)

// SlotCounterRepo persists the slot capacity ledger.  Counts are only ever
// changed through the *Tx methods, inside the transaction that applies the
// matching reservation change, or by Repair which recomputes them from the
// reservations table under the same lock.
type SlotCounterRepo struct {
    db      *sql.DB
    dialect Dialect
}

// NewSlotCounterRepo returns a SlotCounterRepo bound to db.
func NewSlotCounterRepo(db *sql.DB, d Dialect) *SlotCounterRepo {
    return &SlotCounterRepo{db: db, dialect: d}
}

const counterColumns = `slot_key, slot_date, slot, booked_count, capacity, updated_at`

type rowScanner interface {
    Scan(dest ...any) error
}

func scanCounter(row rowScanner) (model.SlotCounter, error) {
    var c model.SlotCounter
    err := row.Scan(&c.Key, &c.Date, &c.Slot, &c.Count, &c.Capacity, sqlTime{&c.UpdatedAt})
    return c, err
}

// GetForUpdateTx reads a counter and locks it for the rest of tx.
func (r *SlotCounterRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, key model.SlotKey) (model.SlotCounter, error) {
    q := `SELECT ` + counterColumns + ` FROM slot_counters WHERE slot_key = ?` + r.dialect.forUpdate()
    return scanCounter(tx.QueryRowContext(ctx, q, string(key)))
}

// SetCountTx overwrites the count of a locked counter.
func (r *SlotCounterRepo) SetCountTx(ctx context.Context, tx *sql.Tx, key model.SlotKey, count int, at time.Time) error {
    _, err := tx.ExecContext(ctx,
        `UPDATE slot_counters SET booked_count = ?, updated_at = ? WHERE slot_key = ?`,
        count, at.UTC(), string(key))
    return err
}

// Get reads a counter without locking.
func (r *SlotCounterRepo) Get(ctx context.Context, key model.SlotKey) (model.SlotCounter, error) {
    q := `SELECT ` + counterColumns + ` FROM slot_counters WHERE slot_key = ?`
    return scanCounter(r.db.QueryRowContext(ctx, q, string(key)))
}

// Provision creates a counter with the given capacity for every slot of
// every date.  Existing counters are left untouched.  It returns how many
// counters were created.
func (r *SlotCounterRepo) Provision(ctx context.Context, dates []string, capacity int, at time.Time) (int, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return 0, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    q := r.dialect.insertIgnore() + ` INTO slot_counters (` + counterColumns + `) VALUES (?, ?, ?, 0, ?, ?)`
    created := 0
    for _, d := range dates {
        for _, s := range model.Slots {
            res, err := tx.ExecContext(ctx, q, string(model.NewSlotKey(d, s)), d, string(s), capacity, at.UTC())
            if err != nil {
                return 0, mapError(err)
            }
            n, err := res.RowsAffected()
            if err != nil {
                return 0, err
            }
            created += int(n)
        }
    }
    if err := tx.Commit(); err != nil {
        return 0, mapError(err)
    }
    committed = true
    return created, nil
}

// SetCapacity changes the ceiling of an existing counter.  The counter is
// locked so that a concurrent booking cannot slip above the new ceiling.
func (r *SlotCounterRepo) SetCapacity(ctx context.Context, key model.SlotKey, capacity int, at time.Time) (model.SlotCounter, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return model.SlotCounter{}, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    c, err := r.GetForUpdateTx(ctx, tx, key)
    if err != nil {
        return model.SlotCounter{}, err
    }
    if capacity < c.Count {
        return model.SlotCounter{}, ErrCapacityBelowCount
    }
    if _, err := tx.ExecContext(ctx,
        `UPDATE slot_counters SET capacity = ?, updated_at = ? WHERE slot_key = ?`,
        capacity, at.UTC(), string(key)); err != nil {
        return model.SlotCounter{}, mapError(err)
    }
    if err := tx.Commit(); err != nil {
        return model.SlotCounter{}, mapError(err)
    }
    committed = true
    c.Capacity = capacity
    c.UpdatedAt = at.UTC()
    return c, nil
}

// ListRange returns the counters of every date in [from, to], ordered by
// date and then by slot position in the day.
func (r *SlotCounterRepo) ListRange(ctx context.Context, from, to string) ([]model.SlotCounter, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+counterColumns+` FROM slot_counters WHERE slot_date BETWEEN ? AND ? ORDER BY slot_date`,
        from, to)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []model.SlotCounter
    for rows.Next() {
        c, err := scanCounter(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, c)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    sortCounters(out)
    return out, nil
}

// Audit compares every counter in [from, to] with the number of active
// reservations it guards and returns the ones that disagree.
func (r *SlotCounterRepo) Audit(ctx context.Context, from, to string) ([]model.LedgerDrift, error) {
    const q = `
SELECT c.slot_key, c.slot_date, c.slot, c.booked_count,
       (SELECT COUNT(*) FROM reservations r
         WHERE r.slot_date = c.slot_date AND r.slot = c.slot AND r.status = 'active') AS actual
  FROM slot_counters c
 WHERE c.slot_date BETWEEN ? AND ?
 ORDER BY c.slot_date, c.slot`
    rows, err := r.db.QueryContext(ctx, q, from, to)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var drift []model.LedgerDrift
    for rows.Next() {
        var d model.LedgerDrift
        if err := rows.Scan(&d.Key, &d.Date, &d.Slot, &d.Stored, &d.Actual); err != nil {
            return nil, err
        }
        if d.Stored != d.Actual {
            drift = append(drift, d)
        }
    }
    return drift, rows.Err()
}

// Repair recomputes one counter from the reservations table.  The counter
// is locked while counting so that no booking interleaves.  It reports the
// drift it corrected, or ok=false when the counter was already accurate.
func (r *SlotCounterRepo) Repair(ctx context.Context, key model.SlotKey, at time.Time) (drift model.LedgerDrift, ok bool, err error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return drift, false, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    c, err := r.GetForUpdateTx(ctx, tx, key)
    if err != nil {
        return drift, false, err
    }
    var actual int
    if err := tx.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM reservations WHERE slot_date = ? AND slot = ? AND status = 'active'`,
        c.Date, string(c.Slot)).Scan(&actual); err != nil {
        return drift, false, err
    }
    drift = model.LedgerDrift{Key: c.Key, Date: c.Date, Slot: c.Slot, Stored: c.Count, Actual: actual}
    if actual == c.Count {
        return drift, false, nil
    }
    if err := r.SetCountTx(ctx, tx, key, actual, at); err != nil {
        return drift, false, mapError(err)
    }
    if err := tx.Commit(); err != nil {
        return drift, false, mapError(err)
    }
    committed = true
    return drift, true, nil
}

func sortCounters(cs []model.SlotCounter) {
    sort.SliceStable(cs, func(i, j int) bool {
        if cs[i].Date != cs[j].Date {
            return cs[i].Date < cs[j].Date
        }
        return cs[i].Slot.Index() < cs[j].Slot.Index()
    })
}
