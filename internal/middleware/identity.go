package middleware

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/slot-calendar/internal/model"
)

// UserID returns the authenticated user id, or "" when the request carries
// no identity.
func UserID(c echo.Context) string {
    s, _ := c.Get(ctxUserID).(string)
    return s
}

// Role returns the role claim of the authenticated user.
func Role(c echo.Context) model.Role {
    s, _ := c.Get(ctxRole).(string)
    return model.Role(s)
}

// DisplayName returns the name claim of the authenticated user.
func DisplayName(c echo.Context) string {
    s, _ := c.Get(ctxName).(string)
    return s
}

// currentUserID is UserID with "anon" for unauthenticated requests, for use
// in cache and rate limit keys.
func currentUserID(c echo.Context) string {
    if id := UserID(c); id != "" {
        return id
    }
    return "anon"
}
