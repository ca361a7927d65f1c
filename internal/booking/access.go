package booking

import "github.com/iliyamo/slot-calendar/internal/model"

// Caller is the authenticated identity on whose behalf an operation runs,
// as issued by the identity provider.
type Caller struct {
    ID          string
    Role        model.Role
    DisplayName string
}

// Authenticated reports whether the caller carries a user id.
func (c Caller) Authenticated() bool { return c.ID != "" }

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool { return c.Role == model.RoleAdmin }

// CanModify reports whether caller may update, cancel or delete r.
func CanModify(r model.Reservation, caller Caller) bool {
    if !caller.Authenticated() {
        return false
    }
    return caller.ID == r.OwnerID || caller.IsAdmin()
}

func snapshotName(c Caller) string {
    if c.DisplayName == "" {
        return "User"
    }
    return c.DisplayName
}
