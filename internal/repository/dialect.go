package repository

// Dialect names the SQL flavour a repository talks to.  Statements are
// written in the common subset of MySQL and SQLite; the few places where
// the two differ go through the helpers below.
type Dialect string

const (
    MySQL  Dialect = "mysql"
    SQLite Dialect = "sqlite"
)

// forUpdate returns the row-locking suffix for SELECT statements.  SQLite
// has no row locks; its single writer connection serialises transactions.
func (d Dialect) forUpdate() string {
    if d == SQLite {
        return ""
    }
    return " FOR UPDATE"
}

// insertIgnore returns the INSERT verb that skips rows violating a unique key.
func (d Dialect) insertIgnore() string {
    if d == SQLite {
        return "INSERT OR IGNORE"
    }
    return "INSERT IGNORE"
}
