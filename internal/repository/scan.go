package repository

import (
    "fmt"
    "time"
)

// Both drivers hand DATETIME columns back as time.Time in the common case,
// but SQLite returns the stored text when a value was written by another
// client or through an expression.  sqlTime accepts either form.
var timeLayouts = []string{
    "2006-01-02 15:04:05.999999999-07:00",
    time.RFC3339Nano,
    "2006-01-02 15:04:05.999999999 -0700 MST",
    "2006-01-02 15:04:05",
}

type sqlTime struct{ dst *time.Time }

func (s sqlTime) Scan(src any) error {
    switch v := src.(type) {
    case time.Time:
        *s.dst = v.UTC()
        return nil
    case string:
        return s.parse(v)
    case []byte:
        return s.parse(string(v))
    case nil:
        *s.dst = time.Time{}
        return nil
    }
    return fmt.Errorf("repository: cannot scan %T into time", src)
}

func (s sqlTime) parse(v string) error {
    for _, layout := range timeLayouts {
        if t, err := time.Parse(layout, v); err == nil {
            *s.dst = t.UTC()
            return nil
        }
    }
    return fmt.Errorf("repository: unrecognised time %q", v)
}

// sqlNullTime scans a nullable timestamp into a *time.Time.
type sqlNullTime struct{ dst **time.Time }

func (s sqlNullTime) Scan(src any) error {
    if src == nil {
        *s.dst = nil
        return nil
    }
    var t time.Time
    if err := (sqlTime{dst: &t}).Scan(src); err != nil {
        return err
    }
    *s.dst = &t
    return nil
}

func nullString(s string) any {
    if s == "" {
        return nil
    }
    return s
}
