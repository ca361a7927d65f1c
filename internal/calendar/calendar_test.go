package calendar

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/slot-calendar/internal/model"
)

func TestBuildGroupsByExactSlot(t *testing.T) {
    t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
    dates := []string{"2025-06-01", "2025-06-02"}
    counters := []model.SlotCounter{
        {Date: "2025-06-01", Slot: model.SlotMorning, Count: 2, Capacity: 2},
        {Date: "2025-06-02", Slot: model.SlotEvening, Count: 0, Capacity: 5},
        {Date: "2025-07-01", Slot: model.SlotEvening, Count: 1, Capacity: 5},
    }
    reservations := []model.Reservation{
        {ID: "late", Date: "2025-06-01", Slot: model.SlotMorning, CreatedAt: t0.Add(time.Hour)},
        {ID: "early", Date: "2025-06-01", Slot: model.SlotMorning, CreatedAt: t0},
        {ID: "stray", Date: "2025-06-03", Slot: model.SlotMorning, CreatedAt: t0},
        {ID: "odd", Date: "2025-06-01", Slot: "night", CreatedAt: t0},
    }

    days := Build(dates, counters, reservations)
    require.Len(t, days, 2)
    for _, d := range days {
        require.Len(t, d.Slots, 3)
        assert.Equal(t, model.Slots[0], d.Slots[0].Slot)
    }

    morning := days[0].Slots[0]
    assert.True(t, morning.Provisioned)
    assert.Equal(t, 0, morning.Available)
    require.Len(t, morning.Reservations, 2)
    assert.Equal(t, "early", morning.Reservations[0].ID)
    assert.Equal(t, "late", morning.Reservations[1].ID)

    afternoon := days[0].Slots[1]
    assert.False(t, afternoon.Provisioned)
    assert.NotNil(t, afternoon.Reservations)
    assert.Empty(t, afternoon.Reservations)

    evening := days[1].Slots[2]
    assert.True(t, evening.Provisioned)
    assert.Equal(t, 5, evening.Available)
}

type stubLister struct {
    reservations []model.Reservation
    calls        int
}

func (s *stubLister) ListRange(context.Context, string, string) ([]model.Reservation, error) {
    s.calls++
    return s.reservations, nil
}

type stubCounters struct{ counters []model.SlotCounter }

func (s stubCounters) ListRange(context.Context, string, string) ([]model.SlotCounter, error) {
    return s.counters, nil
}

func TestServiceRange(t *testing.T) {
    res := &stubLister{}
    svc := NewService(res, stubCounters{})

    days, err := svc.Range(context.Background(), "2025-06-01", "2025-06-07")
    require.NoError(t, err)
    assert.Len(t, days, 7)
    assert.Equal(t, 1, res.calls)

    _, err = svc.Range(context.Background(), "2025-06-07", "2025-06-01")
    assert.ErrorIs(t, err, model.ErrInvalidRange)
    _, err = svc.Range(context.Background(), "2025-01-01", "2025-12-31")
    assert.ErrorIs(t, err, model.ErrInvalidRange)
    _, err = svc.Availability(context.Background(), "nope", "2025-06-01")
    assert.ErrorIs(t, err, model.ErrInvalidDate)
    assert.Equal(t, 1, res.calls)
}
