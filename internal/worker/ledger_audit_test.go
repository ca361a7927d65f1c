package worker

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"

    "github.com/iliyamo/slot-calendar/internal/model"
)

type fakeAuditor struct {
    drift     []model.LedgerDrift
    err       error
    auditArgs [2]string
    repairs   int
}

func (f *fakeAuditor) Audit(_ context.Context, from, to string) ([]model.LedgerDrift, error) {
    f.auditArgs = [2]string{from, to}
    return f.drift, f.err
}

func (f *fakeAuditor) Repair(context.Context, string, string) ([]model.LedgerDrift, error) {
    f.repairs++
    return f.drift, nil
}

func fixedWorker(a Auditor, days int, autoRepair bool) *LedgerAuditWorker {
    w := NewLedgerAuditWorker(a, time.Minute, days, autoRepair)
    w.now = func() time.Time { return time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC) }
    return w
}

func TestRunOnceAuditsWindow(t *testing.T) {
    a := &fakeAuditor{}
    got := fixedWorker(a, 3, true).RunOnce(context.Background())
    assert.Empty(t, got)
    assert.Equal(t, [2]string{"2025-06-30", "2025-07-02"}, a.auditArgs)
    assert.Zero(t, a.repairs)
}

func TestRunOnceRepairsWhenEnabled(t *testing.T) {
    drift := []model.LedgerDrift{{Key: "2025-06-30_morning", Stored: 2, Actual: 1}}

    a := &fakeAuditor{drift: drift}
    assert.Equal(t, drift, fixedWorker(a, 1, false).RunOnce(context.Background()))
    assert.Zero(t, a.repairs)

    a = &fakeAuditor{drift: drift}
    fixedWorker(a, 1, true).RunOnce(context.Background())
    assert.Equal(t, 1, a.repairs)
}

func TestRunOnceAuditError(t *testing.T) {
    a := &fakeAuditor{err: errors.New("db down")}
    assert.Nil(t, fixedWorker(a, 1, true).RunOnce(context.Background()))
    assert.Zero(t, a.repairs)
}

func TestStartDisabledReturns(t *testing.T) {
    w := NewLedgerAuditWorker(&fakeAuditor{}, 0, 0, false)
    assert.Equal(t, 1, w.days)
    done := make(chan struct{})
    go func() {
        w.Start(context.Background())
        close(done)
    }()
    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatal("disabled worker did not return")
    }
}
