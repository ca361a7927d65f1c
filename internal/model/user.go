package model

import "time"

// Role is the authorization level carried in the identity token.
type Role string

const (
    RoleUser  Role = "user"
    RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// User represents an account record as stored in the `users` table.
// The password hash never leaves the repository and handler layers.
//
// Fields:
//  ID           – opaque identifier (UUID).
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hashed password.
//  DisplayName  – label shown next to the user's reservations.
//  Role         – user or admin.
//  IsActive     – inactive accounts cannot log in.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           string    `json:"id"`           // users.id
    Email        string    `json:"email"`        // users.email
    PasswordHash string    `json:"-"`            // users.password_hash
    DisplayName  string    `json:"display_name"` // users.display_name
    Role         Role      `json:"role"`         // users.role
    IsActive     bool      `json:"is_active"`    // users.is_active
    CreatedAt    time.Time `json:"created_at"`   // users.created_at
    UpdatedAt    time.Time `json:"updated_at"`   // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (nil if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    string     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
