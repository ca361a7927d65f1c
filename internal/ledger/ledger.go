// Package ledger administers the slot capacity ledger: provisioning
// counters, changing capacities, and auditing counts against the
// reservations they summarise.
package ledger

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/sirupsen/logrus"

    "github.com/iliyamo/slot-calendar/internal/booking"
    "github.com/iliyamo/slot-calendar/internal/model"
)

// MaxProvisionDays bounds a single provisioning request.
const MaxProvisionDays = 366

// ErrInvalidCapacity is returned for negative capacities.
var ErrInvalidCapacity = errors.New("capacity must not be negative")

// Store is the persistence the ledger needs.
type Store interface {
    Provision(ctx context.Context, dates []string, capacity int, at time.Time) (int, error)
    SetCapacity(ctx context.Context, key model.SlotKey, capacity int, at time.Time) (model.SlotCounter, error)
    Audit(ctx context.Context, from, to string) ([]model.LedgerDrift, error)
    Repair(ctx context.Context, key model.SlotKey, at time.Time) (model.LedgerDrift, bool, error)
}

// Service wraps Store with validation and logging.
type Service struct {
    store           Store
    defaultCapacity int
    now             func() time.Time
    log             logrus.FieldLogger
}

func NewService(store Store, defaultCapacity int, log logrus.FieldLogger) *Service {
    if log == nil {
        log = logrus.StandardLogger()
    }
    return &Service{
        store:           store,
        defaultCapacity: defaultCapacity,
        now:             func() time.Time { return time.Now().UTC() },
        log:             log.WithField("component", "ledger"),
    }
}

// Provision creates counters for every slot of [from, to].  A nil capacity
// means the configured default.  Existing counters keep their state.
func (s *Service) Provision(ctx context.Context, from, to string, capacity *int) (int, error) {
    c := s.defaultCapacity
    if capacity != nil {
        c = *capacity
    }
    if c < 0 {
        return 0, ErrInvalidCapacity
    }
    dates, err := model.DateRange(from, to, MaxProvisionDays)
    if err != nil {
        return 0, err
    }
    n, err := s.store.Provision(ctx, dates, c, s.now())
    if err != nil {
        return 0, err
    }
    s.log.WithFields(logrus.Fields{"from": from, "to": to, "capacity": c, "created": n}).Info("slots provisioned")
    return n, nil
}

// SetCapacity changes the ceiling of one provisioned slot.
func (s *Service) SetCapacity(ctx context.Context, date string, slot model.Slot, capacity int) (model.SlotCounter, error) {
    if capacity < 0 {
        return model.SlotCounter{}, ErrInvalidCapacity
    }
    if _, err := model.ParseDate(date); err != nil {
        return model.SlotCounter{}, err
    }
    if !slot.Valid() {
        return model.SlotCounter{}, fmt.Errorf("%w: unknown slot %q", booking.ErrInvalidArgument, slot)
    }
    c, err := s.store.SetCapacity(ctx, model.NewSlotKey(date, slot), capacity, s.now())
    if errors.Is(err, sql.ErrNoRows) {
        return model.SlotCounter{}, booking.ErrSlotNotFound
    }
    return c, err
}

// Audit lists the counters in [from, to] whose count disagrees with the
// number of active reservations.
func (s *Service) Audit(ctx context.Context, from, to string) ([]model.LedgerDrift, error) {
    if _, err := model.DateRange(from, to, 0); err != nil {
        return nil, err
    }
    drift, err := s.store.Audit(ctx, from, to)
    if err != nil {
        return nil, err
    }
    if drift == nil {
        drift = []model.LedgerDrift{}
    }
    return drift, nil
}

// Repair recomputes every drifted counter in [from, to] and returns the
// corrections it applied.  Each counter is fixed in its own transaction.
func (s *Service) Repair(ctx context.Context, from, to string) ([]model.LedgerDrift, error) {
    drift, err := s.Audit(ctx, from, to)
    if err != nil {
        return nil, err
    }
    fixed := make([]model.LedgerDrift, 0, len(drift))
    for _, d := range drift {
        got, changed, err := s.store.Repair(ctx, d.Key, s.now())
        if err != nil {
            return fixed, fmt.Errorf("repair %s: %w", d.Key, err)
        }
        if !changed {
            continue
        }
        s.log.WithFields(logrus.Fields{"key": got.Key, "stored": got.Stored, "actual": got.Actual}).Warn("slot counter repaired")
        fixed = append(fixed, got)
    }
    return fixed, nil
}
