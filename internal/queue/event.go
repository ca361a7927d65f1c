// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

import (
    "time"

    "github.com/iliyamo/slot-calendar/internal/model"
)

// ReservationEventsQueue is the durable queue carrying reservation changes.
const ReservationEventsQueue = "reservation.events"

// ReservationEvent is published after a reservation change commits.  It
// carries enough of the before and after state for downstream consumers to
// log or notify without querying the primary database.
type ReservationEvent struct {
    ReservationID    string `json:"reservation_id"`
    Action           string `json:"action"`
    Date             string `json:"date"`
    Slot             string `json:"slot"`
    Status           string `json:"status,omitempty"`
    PrevDate         string `json:"prev_date,omitempty"`
    PrevSlot         string `json:"prev_slot,omitempty"`
    OwnerID          string `json:"owner_id"`
    OwnerDisplayName string `json:"owner_display_name"`
    ChangedBy        string `json:"changed_by"`
    ChangedAt        string `json:"changed_at"`
}

// NewReservationEvent flattens a history entry into an event.  Date and
// Slot describe the state after the change, or the removed state for
// deletions.
func NewReservationEvent(h model.HistoryEntry) ReservationEvent {
    ev := ReservationEvent{
        ReservationID: h.ReservationID,
        Action:        string(h.Action),
        ChangedBy:     h.ChangedBy,
        ChangedAt:     h.ChangedAt.UTC().Format(time.RFC3339),
    }
    cur := h.After
    if cur == nil {
        cur = h.Before
    }
    if cur != nil {
        ev.Date = cur.Date
        ev.Slot = string(cur.Slot)
        ev.OwnerID = cur.OwnerID
        ev.OwnerDisplayName = cur.OwnerDisplayName
        if h.After != nil {
            ev.Status = string(h.After.Status)
        }
    }
    if h.Before != nil && h.After != nil && h.Before.SlotKey() != h.After.SlotKey() {
        ev.PrevDate = h.Before.Date
        ev.PrevSlot = string(h.Before.Slot)
    }
    return ev
}
