package model

import (
    "strings"
    "time"
)

// SlotKey identifies a (date, slot) pair in the capacity ledger, e.g.
// "2025-01-01_morning".
type SlotKey string

// NewSlotKey builds the composite ledger key.
func NewSlotKey(date string, slot Slot) SlotKey {
    return SlotKey(date + "_" + string(slot))
}

// Split returns the date and slot encoded in the key.
func (k SlotKey) Split() (string, Slot) {
    i := strings.LastIndex(string(k), "_")
    if i < 0 {
        return string(k), ""
    }
    return string(k[:i]), Slot(k[i+1:])
}

// SlotCounter is the occupancy record guarding a slot's capacity.  Count
// always equals the number of active reservations on the same date and
// slot; it is only written in the same transaction as the reservation
// change that moves it.
//
// Fields:
//  Key       – composite key, see SlotKey.
//  Date      – calendar date, YYYY-MM-DD.
//  Slot      – slot name.
//  Count     – number of active reservations occupying the slot.
//  Capacity  – ceiling for Count.
//  UpdatedAt – last mutation timestamp.
type SlotCounter struct {
    Key       SlotKey   `json:"key"`        // slot_counters.slot_key
    Date      string    `json:"date"`       // slot_counters.slot_date
    Slot      Slot      `json:"slot"`       // slot_counters.slot
    Count     int       `json:"count"`      // slot_counters.booked_count
    Capacity  int       `json:"capacity"`   // slot_counters.capacity
    UpdatedAt time.Time `json:"updated_at"` // slot_counters.updated_at
}

// Full reports whether no further reservation fits.
func (c SlotCounter) Full() bool { return c.Count >= c.Capacity }

// Available returns the remaining seats, never negative.
func (c SlotCounter) Available() int {
    if c.Count >= c.Capacity {
        return 0
    }
    return c.Capacity - c.Count
}

// LedgerDrift describes a counter whose stored count disagrees with the
// number of active reservations for its slot.
type LedgerDrift struct {
    Key    SlotKey `json:"key"`
    Date   string  `json:"date"`
    Slot   Slot    `json:"slot"`
    Stored int     `json:"stored"`
    Actual int     `json:"actual"`
}
