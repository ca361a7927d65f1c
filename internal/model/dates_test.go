package model

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
    for _, s := range []string{"2025-06-01", "2024-02-29"} {
        _, err := ParseDate(s)
        assert.NoError(t, err, s)
    }
    for _, s := range []string{"", "2025-6-01", "2025-06-1", "2025-02-30", "01-06-2025", "2025-06-01T00:00:00Z"} {
        _, err := ParseDate(s)
        assert.ErrorIs(t, err, ErrInvalidDate, s)
    }
}

func TestDateRange(t *testing.T) {
    got, err := DateRange("2024-12-30", "2025-01-02", 0)
    require.NoError(t, err)
    assert.Equal(t, []string{"2024-12-30", "2024-12-31", "2025-01-01", "2025-01-02"}, got)

    got, err = DateRange("2025-06-01", "2025-06-01", 1)
    require.NoError(t, err)
    assert.Equal(t, []string{"2025-06-01"}, got)

    _, err = DateRange("2025-06-02", "2025-06-01", 0)
    assert.ErrorIs(t, err, ErrInvalidRange)
    _, err = DateRange("2025-06-01", "2025-06-03", 2)
    assert.ErrorIs(t, err, ErrInvalidRange)
    _, err = DateRange("2025-06-01", "bogus", 0)
    assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestSlotKey(t *testing.T) {
    k := NewSlotKey("2025-01-01", SlotMorning)
    assert.Equal(t, SlotKey("2025-01-01_morning"), k)
    d, s := k.Split()
    assert.Equal(t, "2025-01-01", d)
    assert.Equal(t, SlotMorning, s)

    r := Reservation{Date: "2025-01-01", Slot: SlotMorning}
    assert.Equal(t, k, r.SlotKey())
}

func TestSlotOrderAndCounter(t *testing.T) {
    assert.Equal(t, 0, SlotMorning.Index())
    assert.Equal(t, 2, SlotEvening.Index())
    assert.Equal(t, -1, Slot("night").Index())
    assert.False(t, Slot("night").Valid())

    c := SlotCounter{Count: 3, Capacity: 2}
    assert.True(t, c.Full())
    assert.Equal(t, 0, c.Available())
    c = SlotCounter{Count: 1, Capacity: 4}
    assert.False(t, c.Full())
    assert.Equal(t, 3, c.Available())
}
