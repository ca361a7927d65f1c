package model

import (
    "errors"
    "time"
)

// DateLayout is the calendar-date form used everywhere: no time zone.
const DateLayout = "2006-01-02"

var (
    ErrInvalidDate  = errors.New("invalid date, expected YYYY-MM-DD")
    ErrInvalidRange = errors.New("invalid date range")
)

// ParseDate validates a YYYY-MM-DD string.  Non-canonical forms such as
// "2025-1-01" are rejected so that string comparison matches date order.
func ParseDate(s string) (time.Time, error) {
    t, err := time.Parse(DateLayout, s)
    if err != nil || t.Format(DateLayout) != s {
        return time.Time{}, ErrInvalidDate
    }
    return t, nil
}

// DateRange expands [from, to] into every date it contains.  The range is
// inclusive and may span at most maxDays dates.
func DateRange(from, to string, maxDays int) ([]string, error) {
    start, err := ParseDate(from)
    if err != nil {
        return nil, err
    }
    end, err := ParseDate(to)
    if err != nil {
        return nil, err
    }
    if end.Before(start) {
        return nil, ErrInvalidRange
    }
    days := int(end.Sub(start).Hours()/24) + 1
    if maxDays > 0 && days > maxDays {
        return nil, ErrInvalidRange
    }
    out := make([]string, 0, days)
    for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
        out = append(out, d.Format(DateLayout))
    }
    return out, nil
}
