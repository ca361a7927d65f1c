package booking

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/sirupsen/logrus"

    "github.com/iliyamo/slot-calendar/internal/model"
)

const maxNotesLength = 1000

// CreateInput carries the client-supplied fields of a new reservation.
type CreateInput struct {
    Date           string
    Slot           model.Slot
    Notes          string
    IdempotencyKey string
}

// UpdateInput carries the new date, slot and notes of a reservation.
type UpdateInput struct {
    Date  string
    Slot  model.Slot
    Notes string
}

// Service implements the reservation transaction protocol.  It keeps the
// slot capacity ledger and the reservation store consistent by applying
// every reservation change and its counter change inside one transaction.
type Service struct {
    store      Store
    reader     Reader
    events     EventPublisher
    now        func() time.Time
    maxRetries int
    backoff    time.Duration
    log        logrus.FieldLogger
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the commit clock.
func WithClock(now func() time.Time) Option {
    return func(s *Service) { s.now = now }
}

// WithMaxRetries bounds how many times a conflicting transaction is re-run.
func WithMaxRetries(n int) Option {
    return func(s *Service) {
        if n >= 0 {
            s.maxRetries = n
        }
    }
}

// WithBackoff sets the base delay between retries; attempt n waits n*d.
func WithBackoff(d time.Duration) Option {
    return func(s *Service) { s.backoff = d }
}

// WithLogger sets the logger used for commit and retry messages.
func WithLogger(l logrus.FieldLogger) Option {
    return func(s *Service) {
        if l != nil {
            s.log = l
        }
    }
}

// NewService wires a Service.  events may be nil, in which case committed
// changes are not published.
func NewService(store Store, reader Reader, events EventPublisher, opts ...Option) *Service {
    s := &Service{
        store:      store,
        reader:     reader,
        events:     events,
        now:        func() time.Time { return time.Now().UTC() },
        maxRetries: 3,
        backoff:    20 * time.Millisecond,
        log:        logrus.StandardLogger(),
    }
    for _, o := range opts {
        o(s)
    }
    return s
}

// Create books (date, slot) for the caller.  See CreateOrReplay for the
// handling of in.IdempotencyKey.
func (s *Service) Create(ctx context.Context, in CreateInput, caller Caller) (model.Reservation, error) {
    r, _, err := s.CreateOrReplay(ctx, in, caller)
    return r, err
}

// CreateOrReplay books (date, slot) for the caller.  When in.IdempotencyKey
// names a reservation the caller already made with the same date, slot and
// notes, that reservation is returned with replayed set and no seat is
// consumed.  Reusing a key with a different payload is
// ErrIdempotencyMismatch.
func (s *Service) CreateOrReplay(ctx context.Context, in CreateInput, caller Caller) (model.Reservation, bool, error) {
    if !caller.Authenticated() {
        return model.Reservation{}, false, ErrUnauthenticated
    }
    if err := validateTarget(in.Date, in.Slot, in.Notes); err != nil {
        return model.Reservation{}, false, err
    }
    in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
    if len(in.IdempotencyKey) > 128 {
        return model.Reservation{}, false, fmt.Errorf("%w: idempotency key too long", ErrInvalidArgument)
    }

    var (
        created  model.Reservation
        replayed bool
        entry    *model.HistoryEntry
    )
    err := s.runTx(ctx, "create", func(tx Tx) error {
        created, replayed, entry = model.Reservation{}, false, nil

        // A concurrent first use of the key fails the unique index on insert
        // and is retried, so the lookup needs no lock.
        if in.IdempotencyKey != "" {
            prior, err := tx.FindByIdempotencyKey(ctx, caller.ID, in.IdempotencyKey)
            if err == nil {
                if prior.Date != in.Date || prior.Slot != in.Slot || prior.Notes != in.Notes {
                    return ErrIdempotencyMismatch
                }
                created, replayed = prior, true
                return nil
            }
            if !errors.Is(err, sql.ErrNoRows) {
                return err
            }
        }

        key := model.NewSlotKey(in.Date, in.Slot)
        counter, err := tx.LockCounter(ctx, key)
        if errors.Is(err, sql.ErrNoRows) {
            return ErrSlotNotFound
        }
        if err != nil {
            return err
        }

        if counter.Full() {
            return ErrSlotFull
        }

        now := s.now()
        r := model.Reservation{
            Date:             in.Date,
            Slot:             in.Slot,
            OwnerID:          caller.ID,
            OwnerDisplayName: snapshotName(caller),
            Status:           model.StatusActive,
            Notes:            in.Notes,
            IdempotencyKey:   in.IdempotencyKey,
            CreatedAt:        now,
            UpdatedAt:        now,
        }
        if err := tx.InsertReservation(ctx, &r); err != nil {
            return err
        }
        if err := tx.SetCounterCount(ctx, key, counter.Count+1, now); err != nil {
            return err
        }
        h := model.HistoryEntry{
            ReservationID: r.ID,
            Action:        model.ActionCreated,
            After:         &r,
            ChangedBy:     caller.ID,
            ChangedAt:     now,
        }
        if err := tx.AppendHistory(ctx, h); err != nil {
            return err
        }
        created, entry = r, &h
        return nil
    })
    if err != nil {
        return model.Reservation{}, false, err
    }
    s.publish(ctx, entry)
    return created, replayed, nil
}

// Update moves a reservation to (in.Date, in.Slot) and replaces its notes.
// Moving releases the seat in the source slot and takes one in the target
// slot in the same transaction; keeping the same slot touches no counter.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput, caller Caller) (model.Reservation, error) {
    if !caller.Authenticated() {
        return model.Reservation{}, ErrUnauthenticated
    }
    if err := validateTarget(in.Date, in.Slot, in.Notes); err != nil {
        return model.Reservation{}, err
    }

    var (
        updated model.Reservation
        entry   *model.HistoryEntry
    )
    err := s.runTx(ctx, "update", func(tx Tx) error {
        updated, entry = model.Reservation{}, nil
        current, err := s.lockOwned(ctx, tx, id, caller)
        if err != nil {
            return err
        }
        if !current.Active() {
            return ErrReservationCancelled
        }

        now := s.now()
        next := current
        next.Date = in.Date
        next.Slot = in.Slot
        next.Notes = in.Notes
        next.UpdatedAt = now
        if caller.ID == current.OwnerID {
            next.OwnerDisplayName = snapshotName(caller)
        }

        if next.SlotKey() != current.SlotKey() {
            if err := s.move(ctx, tx, current.SlotKey(), next.SlotKey(), now); err != nil {
                return err
            }
        }
        if err := tx.UpdateReservation(ctx, next); err != nil {
            return err
        }
        h := model.HistoryEntry{
            ReservationID: id,
            Action:        model.ActionUpdated,
            Before:        &current,
            After:         &next,
            ChangedBy:     caller.ID,
            ChangedAt:     now,
        }
        if err := tx.AppendHistory(ctx, h); err != nil {
            return err
        }
        updated, entry = next, &h
        return nil
    })
    if err != nil {
        return model.Reservation{}, err
    }
    s.publish(ctx, entry)
    return updated, nil
}

// move takes a seat in to and releases one in from.  Both counters are
// locked in ascending key order so that two opposite moves cannot deadlock.
// A missing source counter is tolerated; a missing target is not.
func (s *Service) move(ctx context.Context, tx Tx, from, to model.SlotKey, now time.Time) error {
    first, second := from, to
    if to < from {
        first, second = to, from
    }
    locked := make(map[model.SlotKey]model.SlotCounter, 2)
    for _, k := range []model.SlotKey{first, second} {
        c, err := tx.LockCounter(ctx, k)
        if errors.Is(err, sql.ErrNoRows) {
            continue
        }
        if err != nil {
            return err
        }
        locked[k] = c
    }

    target, ok := locked[to]
    if !ok {
        return ErrSlotNotFound
    }
    if target.Full() {
        return ErrSlotFull
    }
    if err := tx.SetCounterCount(ctx, to, target.Count+1, now); err != nil {
        return err
    }
    if source, ok := locked[from]; ok {
        return tx.SetCounterCount(ctx, from, floorDecrement(source.Count), now)
    }
    return nil
}

// Cancel releases the seat held by an active reservation and keeps the
// record with status cancelled.  Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, id string, caller Caller) (model.Reservation, error) {
    if !caller.Authenticated() {
        return model.Reservation{}, ErrUnauthenticated
    }
    var (
        result model.Reservation
        entry  *model.HistoryEntry
    )
    err := s.runTx(ctx, "cancel", func(tx Tx) error {
        result, entry = model.Reservation{}, nil
        current, err := s.lockOwned(ctx, tx, id, caller)
        if err != nil {
            return err
        }
        if !current.Active() {
            result = current
            return nil
        }

        now := s.now()
        if err := s.release(ctx, tx, current.SlotKey(), now); err != nil {
            return err
        }
        next := current
        next.Status = model.StatusCancelled
        next.UpdatedAt = now
        if err := tx.UpdateReservation(ctx, next); err != nil {
            return err
        }
        h := model.HistoryEntry{
            ReservationID: id,
            Action:        model.ActionCancelled,
            Before:        &current,
            After:         &next,
            ChangedBy:     caller.ID,
            ChangedAt:     now,
        }
        if err := tx.AppendHistory(ctx, h); err != nil {
            return err
        }
        result, entry = next, &h
        return nil
    })
    if err != nil {
        return model.Reservation{}, err
    }
    s.publish(ctx, entry)
    return result, nil
}

// Delete removes a reservation and, when it was active, releases its seat.
// The counter of the original slot is floored at zero and skipped when it
// does not exist.
func (s *Service) Delete(ctx context.Context, id string, caller Caller) (string, error) {
    if !caller.Authenticated() {
        return "", ErrUnauthenticated
    }
    var entry *model.HistoryEntry
    err := s.runTx(ctx, "delete", func(tx Tx) error {
        entry = nil
        current, err := s.lockOwned(ctx, tx, id, caller)
        if err != nil {
            return err
        }
        now := s.now()
        if err := tx.DeleteReservation(ctx, id); err != nil {
            return err
        }
        if current.Active() {
            if err := s.release(ctx, tx, current.SlotKey(), now); err != nil {
                return err
            }
        }
        h := model.HistoryEntry{
            ReservationID: id,
            Action:        model.ActionDeleted,
            Before:        &current,
            ChangedBy:     caller.ID,
            ChangedAt:     now,
        }
        if err := tx.AppendHistory(ctx, h); err != nil {
            return err
        }
        entry = &h
        return nil
    })
    if err != nil {
        return "", err
    }
    s.publish(ctx, entry)
    return id, nil
}

// Get returns a reservation visible to the caller.
func (s *Service) Get(ctx context.Context, id string, caller Caller) (model.Reservation, error) {
    if !caller.Authenticated() {
        return model.Reservation{}, ErrUnauthenticated
    }
    r, err := s.reader.GetByID(ctx, id)
    if errors.Is(err, sql.ErrNoRows) {
        return model.Reservation{}, ErrNotFound
    }
    if err != nil {
        return model.Reservation{}, err
    }
    if !CanModify(r, caller) {
        return model.Reservation{}, ErrPermissionDenied
    }
    return r, nil
}

// ListMine returns the caller's reservations ordered by date and slot.
func (s *Service) ListMine(ctx context.Context, caller Caller) ([]model.Reservation, error) {
    if !caller.Authenticated() {
        return nil, ErrUnauthenticated
    }
    return s.reader.ListByOwner(ctx, caller.ID)
}

// ListRange returns every reservation between from and to inclusive.
// Admin only.
func (s *Service) ListRange(ctx context.Context, from, to string, caller Caller) ([]model.Reservation, error) {
    if !caller.Authenticated() {
        return nil, ErrUnauthenticated
    }
    if !caller.IsAdmin() {
        return nil, ErrPermissionDenied
    }
    if _, err := model.DateRange(from, to, 0); err != nil {
        return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
    }
    return s.reader.ListRange(ctx, from, to)
}

// History returns the audit trail of a reservation, oldest first.  Admin
// only; a deleted reservation keeps its history.
func (s *Service) History(ctx context.Context, id string, caller Caller) ([]model.HistoryEntry, error) {
    if !caller.Authenticated() {
        return nil, ErrUnauthenticated
    }
    if !caller.IsAdmin() {
        return nil, ErrPermissionDenied
    }
    entries, err := s.reader.ListHistory(ctx, id)
    if err != nil {
        return nil, err
    }
    if len(entries) == 0 {
        return nil, ErrNotFound
    }
    return entries, nil
}

func (s *Service) lockOwned(ctx context.Context, tx Tx, id string, caller Caller) (model.Reservation, error) {
    r, err := tx.LockReservation(ctx, id)
    if errors.Is(err, sql.ErrNoRows) {
        return model.Reservation{}, ErrNotFound
    }
    if err != nil {
        return model.Reservation{}, err
    }
    if !CanModify(r, caller) {
        return model.Reservation{}, ErrPermissionDenied
    }
    return r, nil
}

func (s *Service) release(ctx context.Context, tx Tx, key model.SlotKey, now time.Time) error {
    c, err := tx.LockCounter(ctx, key)
    if errors.Is(err, sql.ErrNoRows) {
        return nil
    }
    if err != nil {
        return err
    }
    return tx.SetCounterCount(ctx, key, floorDecrement(c.Count), now)
}

// runTx executes fn in a transaction and repeats it while the store reports
// a conflict, up to maxRetries extra attempts.
func (s *Service) runTx(ctx context.Context, op string, fn func(Tx) error) error {
    var err error
    for attempt := 0; ; attempt++ {
        err = s.store.WithinTx(ctx, fn)
        if !Retryable(err) || attempt >= s.maxRetries {
            break
        }
        s.log.WithFields(logrus.Fields{"op": op, "attempt": attempt + 1}).Warn("transaction conflict, retrying")
        select {
        case <-ctx.Done():
            return ctx.Err()
        case <-time.After(time.Duration(attempt+1) * s.backoff):
        }
    }
    return err
}

func (s *Service) publish(ctx context.Context, h *model.HistoryEntry) {
    if h == nil {
        return
    }
    s.log.WithFields(logrus.Fields{
        "reservation_id": h.ReservationID,
        "action":         h.Action,
        "changed_by":     h.ChangedBy,
    }).Debug("reservation committed")
    if s.events == nil {
        return
    }
    if err := s.events.Publish(ctx, *h); err != nil {
        s.log.WithError(err).WithField("reservation_id", h.ReservationID).Warn("publish reservation event failed")
    }
}

func validateTarget(date string, slot model.Slot, notes string) error {
    if _, err := model.ParseDate(date); err != nil {
        return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
    }
    if !slot.Valid() {
        return fmt.Errorf("%w: unknown slot %q", ErrInvalidArgument, slot)
    }
    if len(notes) > maxNotesLength {
        return fmt.Errorf("%w: notes exceed %d characters", ErrInvalidArgument, maxNotesLength)
    }
    return nil
}

func floorDecrement(n int) int {
    if n <= 0 {
        return 0
    }
    return n - 1
}
