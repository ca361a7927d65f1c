// Package repository implements the SQL persistence of accounts, the slot
// capacity ledger and reservations.  Missing rows are reported as
// sql.ErrNoRows; engine-level write conflicts are translated into
// booking.ErrTransactionConflict so that the service can retry them.
package repository

import (
    "errors"
    "fmt"

    "github.com/go-sql-driver/mysql"
    "modernc.org/sqlite"
    sqlite3 "modernc.org/sqlite/lib"

    "github.com/iliyamo/slot-calendar/internal/booking"
)

// ErrEmailExists is returned when registering an email that is already taken.
var ErrEmailExists = errors.New("email already exists")

// ErrCapacityBelowCount is returned when a capacity change would leave a
// counter holding more active reservations than it allows.
var ErrCapacityBelowCount = errors.New("capacity cannot be lower than the current count")

// MySQL error numbers.
const (
    mysqlDuplicateEntry  = 1062
    mysqlLockWaitTimeout = 1205
    mysqlDeadlock        = 1213
)

// isConflict reports whether err is an abort caused by a concurrent writer:
// a deadlock or lock wait timeout, a busy database, or a unique key race.
func isConflict(err error) bool {
    var me *mysql.MySQLError
    if errors.As(err, &me) {
        switch me.Number {
        case mysqlDeadlock, mysqlLockWaitTimeout, mysqlDuplicateEntry:
            return true
        }
        return false
    }
    var se *sqlite.Error
    if errors.As(err, &se) {
        switch se.Code() & 0xff {
        case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
            return true
        }
        return isDuplicate(err)
    }
    return false
}

// isDuplicate reports whether err is a unique or primary key violation.
func isDuplicate(err error) bool {
    var me *mysql.MySQLError
    if errors.As(err, &me) {
        return me.Number == mysqlDuplicateEntry
    }
    var se *sqlite.Error
    if errors.As(err, &se) {
        switch se.Code() {
        case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
            return true
        }
    }
    return false
}

// mapError wraps conflict errors with booking.ErrTransactionConflict and
// returns every other error unchanged.
func mapError(err error) error {
    if err == nil || !isConflict(err) {
        return err
    }
    return fmt.Errorf("%w: %v", booking.ErrTransactionConflict, err)
}
