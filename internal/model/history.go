package model

import "time"

// HistoryAction names the mutation recorded in a history entry.
type HistoryAction string

const (
    ActionCreated   HistoryAction = "created"
    ActionUpdated   HistoryAction = "updated"
    ActionCancelled HistoryAction = "cancelled"
    ActionDeleted   HistoryAction = "deleted"
)

// HistoryEntry is an audit record of one reservation mutation.  Before is
// nil for creations and After is nil for deletions.
type HistoryEntry struct {
    ID            uint64        `json:"id"`             // reservation_history.id
    ReservationID string        `json:"reservation_id"` // reservation_history.reservation_id
    Action        HistoryAction `json:"action"`         // reservation_history.action
    Before        *Reservation  `json:"before,omitempty"`
    After         *Reservation  `json:"after,omitempty"`
    ChangedBy     string        `json:"changed_by"` // reservation_history.changed_by
    ChangedAt     time.Time     `json:"changed_at"` // reservation_history.changed_at
}
