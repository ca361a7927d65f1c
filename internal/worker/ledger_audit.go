package worker

import (
    "context"
    "time"

    "github.com/sirupsen/logrus"

    "github.com/iliyamo/slot-calendar/internal/model"
)

// Auditor is the part of the ledger service the worker drives.
type Auditor interface {
    Audit(ctx context.Context, from, to string) ([]model.LedgerDrift, error)
    Repair(ctx context.Context, from, to string) ([]model.LedgerDrift, error)
}

// LedgerAuditWorker periodically checks the slot counters of the next
// Days dates against their reservations and, when AutoRepair is set,
// corrects any drift it finds.
type LedgerAuditWorker struct {
    auditor    Auditor
    interval   time.Duration
    days       int
    autoRepair bool
    now        func() time.Time
}

func NewLedgerAuditWorker(auditor Auditor, interval time.Duration, days int, autoRepair bool) *LedgerAuditWorker {
    if days < 1 {
        days = 1
    }
    return &LedgerAuditWorker{
        auditor:    auditor,
        interval:   interval,
        days:       days,
        autoRepair: autoRepair,
        now:        func() time.Time { return time.Now().UTC() },
    }
}

// Start runs until ctx is cancelled.  It returns immediately when the
// interval is not positive.
func (w *LedgerAuditWorker) Start(ctx context.Context) {
    if w.interval <= 0 {
        logrus.Info("Ledger audit worker disabled")
        return
    }
    ticker := time.NewTicker(w.interval)
    defer ticker.Stop()

    logrus.WithField("interval", w.interval.String()).Info("Ledger audit worker started")
    for {
        select {
        case <-ctx.Done():
            logrus.Info("Ledger audit worker stopped")
            return
        case <-ticker.C:
            w.RunOnce(ctx)
        }
    }
}

// RunOnce performs a single audit pass and returns the drift it saw.
func (w *LedgerAuditWorker) RunOnce(ctx context.Context) []model.LedgerDrift {
    start := w.now()
    from := start.Format(model.DateLayout)
    to := start.AddDate(0, 0, w.days-1).Format(model.DateLayout)

    drift, err := w.auditor.Audit(ctx, from, to)
    if err != nil {
        logrus.Errorf("Ledger audit failed: %v", err)
        return nil
    }
    if len(drift) == 0 {
        logrus.Debug("Ledger audit found no drift")
        return drift
    }
    for _, d := range drift {
        logrus.WithFields(logrus.Fields{"key": d.Key, "stored": d.Stored, "actual": d.Actual}).Warn("Slot counter drift detected")
    }
    if !w.autoRepair {
        return drift
    }
    fixed, err := w.auditor.Repair(ctx, from, to)
    if err != nil {
        logrus.Errorf("Ledger repair failed: %v", err)
        return drift
    }
    logrus.Infof("Ledger repair completed: %d counters fixed", len(fixed))
    return drift
}
