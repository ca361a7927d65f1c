package model

import "time"

// Slot is one of the three fixed daily time windows.
type Slot string

const (
    SlotMorning   Slot = "morning"
    SlotAfternoon Slot = "afternoon"
    SlotEvening   Slot = "evening"
)

// Slots lists every slot in calendar order.
var Slots = []Slot{SlotMorning, SlotAfternoon, SlotEvening}

// Valid reports whether s is a known slot.
func (s Slot) Valid() bool {
    switch s {
    case SlotMorning, SlotAfternoon, SlotEvening:
        return true
    }
    return false
}

// Index returns the calendar position of the slot, or -1 when unknown.
func (s Slot) Index() int {
    for i, v := range Slots {
        if v == s {
            return i
        }
    }
    return -1
}

// ReservationStatus is the lifecycle state of a reservation.  Only active
// reservations occupy a seat in their slot.
type ReservationStatus string

const (
    StatusActive    ReservationStatus = "active"
    StatusCancelled ReservationStatus = "cancelled"
)

// Reservation records a user's booking of one slot on one date.
//
// Fields:
//  ID               – opaque identifier assigned on insert.
//  Date             – calendar date, YYYY-MM-DD.
//  Slot             – morning, afternoon or evening.
//  OwnerID          – user who created the reservation; never changes.
//  OwnerDisplayName – display label captured at creation/edit time.
//  Status           – active or cancelled.
//  Notes            – optional free text.
//  IdempotencyKey   – optional client token; unique per owner.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Reservation struct {
    ID               string            `json:"id"`                        // reservations.id
    Date             string            `json:"date"`                      // reservations.slot_date
    Slot             Slot              `json:"slot"`                      // reservations.slot
    OwnerID          string            `json:"owner_id"`                  // reservations.owner_id
    OwnerDisplayName string            `json:"owner_display_name"`        // reservations.owner_display_name
    Status           ReservationStatus `json:"status"`                    // reservations.status
    Notes            string            `json:"notes"`                     // reservations.notes (nullable)
    IdempotencyKey   string            `json:"idempotency_key,omitempty"` // reservations.idempotency_key (nullable)
    CreatedAt        time.Time         `json:"created_at"`                // reservations.created_at
    UpdatedAt        time.Time         `json:"updated_at"`                // reservations.updated_at
}

// SlotKey returns the ledger key of the slot this reservation occupies.
func (r Reservation) SlotKey() SlotKey { return NewSlotKey(r.Date, r.Slot) }

// Active reports whether the reservation counts against capacity.
func (r Reservation) Active() bool { return r.Status == StatusActive }
