// Package calendar projects reservations and slot counters onto a day by
// day grid for display.  It only reads.
package calendar

import (
    "context"
    "sort"

    "github.com/iliyamo/slot-calendar/internal/model"
)

// MaxDays bounds the span of a single calendar query.
const MaxDays = 62

// Entry is the part of a reservation the calendar shows.
type Entry struct {
    ID               string                  `json:"id"`
    Date             string                  `json:"date"`
    Slot             model.Slot              `json:"slot"`
    OwnerID          string                  `json:"owner_id"`
    OwnerDisplayName string                  `json:"owner_display_name"`
    Status           model.ReservationStatus `json:"status"`
}

// SlotView is one cell of the grid.  Provisioned is false when the slot has
// no counter, in which case it cannot be booked.
type SlotView struct {
    Slot         model.Slot `json:"slot"`
    Count        int        `json:"count"`
    Capacity     int        `json:"capacity"`
    Available    int        `json:"available"`
    Provisioned  bool       `json:"provisioned"`
    Reservations []Entry    `json:"reservations"`
}

// Day holds the three slots of one date in calendar order.
type Day struct {
    Date  string     `json:"date"`
    Slots []SlotView `json:"slots"`
}

// Build groups reservations by exact date and slot.  Every date in dates
// yields a Day, even when nothing is booked.  Records outside dates or with
// an unknown slot are ignored.
func Build(dates []string, counters []model.SlotCounter, reservations []model.Reservation) []Day {
    byKey := make(map[model.SlotKey]*SlotView, len(dates)*len(model.Slots))
    days := make([]Day, len(dates))
    for i, d := range dates {
        days[i] = Day{Date: d, Slots: make([]SlotView, len(model.Slots))}
        for j, s := range model.Slots {
            days[i].Slots[j] = SlotView{Slot: s, Reservations: []Entry{}}
            byKey[model.NewSlotKey(d, s)] = &days[i].Slots[j]
        }
    }

    for _, c := range counters {
        v, ok := byKey[model.NewSlotKey(c.Date, c.Slot)]
        if !ok {
            continue
        }
        v.Provisioned = true
        v.Count = c.Count
        v.Capacity = c.Capacity
        v.Available = c.Available()
    }

    sorted := append([]model.Reservation(nil), reservations...)
    sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })
    for _, r := range sorted {
        v, ok := byKey[r.SlotKey()]
        if !ok {
            continue
        }
        v.Reservations = append(v.Reservations, Entry{
            ID:               r.ID,
            Date:             r.Date,
            Slot:             r.Slot,
            OwnerID:          r.OwnerID,
            OwnerDisplayName: r.OwnerDisplayName,
            Status:           r.Status,
        })
    }
    return days
}

type reservationLister interface {
    ListRange(ctx context.Context, from, to string) ([]model.Reservation, error)
}

type counterLister interface {
    ListRange(ctx context.Context, from, to string) ([]model.SlotCounter, error)
}

// Service loads the data behind a calendar range.
type Service struct {
    reservations reservationLister
    counters     counterLister
}

func NewService(reservations reservationLister, counters counterLister) *Service {
    return &Service{reservations: reservations, counters: counters}
}

// Range returns the calendar for [from, to].  It fails with
// model.ErrInvalidDate or model.ErrInvalidRange on bad input.
func (s *Service) Range(ctx context.Context, from, to string) ([]Day, error) {
    dates, err := model.DateRange(from, to, MaxDays)
    if err != nil {
        return nil, err
    }
    counters, err := s.counters.ListRange(ctx, from, to)
    if err != nil {
        return nil, err
    }
    reservations, err := s.reservations.ListRange(ctx, from, to)
    if err != nil {
        return nil, err
    }
    return Build(dates, counters, reservations), nil
}

// Availability returns the provisioned counters of [from, to].
func (s *Service) Availability(ctx context.Context, from, to string) ([]model.SlotCounter, error) {
    if _, err := model.DateRange(from, to, MaxDays); err != nil {
        return nil, err
    }
    return s.counters.ListRange(ctx, from, to)
}
