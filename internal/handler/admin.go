package handler

import (
    "database/sql"
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/slot-calendar/internal/booking"
    "github.com/iliyamo/slot-calendar/internal/ledger"
    "github.com/iliyamo/slot-calendar/internal/middleware"
    "github.com/iliyamo/slot-calendar/internal/model"
    "github.com/iliyamo/slot-calendar/internal/repository"
)

// AdminHandler groups the endpoints reserved for the admin role: the
// all-users reservation table, slot provisioning, ledger audit and user
// management.  Routes are expected to sit behind RequireRole(admin).
type AdminHandler struct {
    Bookings *booking.Service
    Ledger   *ledger.Service
    Users    *repository.UserRepo
    Tokens   *repository.TokenRepo
}

func NewAdminHandler(b *booking.Service, l *ledger.Service, u *repository.UserRepo, t *repository.TokenRepo) *AdminHandler {
    if b == nil || l == nil || u == nil || t == nil {
        panic("nil dependency passed to NewAdminHandler")
    }
    return &AdminHandler{Bookings: b, Ledger: l, Users: u, Tokens: t}
}

// ListReservations handles GET /v1/admin/reservations?from&to.
func (h *AdminHandler) ListReservations(c echo.Context) error {
    ctx, cancel := requestCtx(c)
    defer cancel()

    items, err := h.Bookings.ListRange(ctx, c.QueryParam("from"), c.QueryParam("to"), getCaller(c))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// History handles GET /v1/admin/reservations/:id/history.
func (h *AdminHandler) History(c echo.Context) error {
    ctx, cancel := requestCtx(c)
    defer cancel()

    entries, err := h.Bookings.History(ctx, c.Param("id"), getCaller(c))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": entries})
}

// ProvisionSlots handles POST /v1/admin/slots {from, to, capacity?}.
func (h *AdminHandler) ProvisionSlots(c echo.Context) error {
    var req struct {
        From     string `json:"from"`
        To       string `json:"to"`
        Capacity *int   `json:"capacity"`
    }
    if err := c.Bind(&req); err != nil {
        return errorJSON(c, http.StatusBadRequest, "invalid_argument", "invalid request body")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    n, err := h.Ledger.Provision(ctx, req.From, req.To, req.Capacity)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"created": n})
}

// SetCapacity handles PUT /v1/admin/slots/:date/:slot {capacity}.
func (h *AdminHandler) SetCapacity(c echo.Context) error {
    var req struct {
        Capacity *int `json:"capacity"`
    }
    if err := c.Bind(&req); err != nil || req.Capacity == nil {
        return errorJSON(c, http.StatusBadRequest, "invalid_argument", "capacity is required")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    slot := model.Slot(strings.ToLower(c.Param("slot")))
    if !slot.Valid() {
        return errorJSON(c, http.StatusBadRequest, "invalid_argument", "unknown slot")
    }
    counter, err := h.Ledger.SetCapacity(ctx, c.Param("date"), slot, *req.Capacity)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, counter)
}

// AuditLedger handles GET /v1/admin/ledger/audit?from&to.
func (h *AdminHandler) AuditLedger(c echo.Context) error {
    ctx, cancel := requestCtx(c)
    defer cancel()

    drift, err := h.Ledger.Audit(ctx, c.QueryParam("from"), c.QueryParam("to"))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"drift": drift})
}

// RepairLedger handles POST /v1/admin/ledger/repair {from, to}.
func (h *AdminHandler) RepairLedger(c echo.Context) error {
    var req struct {
        From string `json:"from"`
        To   string `json:"to"`
    }
    if err := c.Bind(&req); err != nil {
        return errorJSON(c, http.StatusBadRequest, "invalid_argument", "invalid request body")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    fixed, err := h.Ledger.Repair(ctx, req.From, req.To)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"repaired": fixed})
}

// ListUsers handles GET /v1/admin/users.
func (h *AdminHandler) ListUsers(c echo.Context) error {
    ctx, cancel := requestCtx(c)
    defer cancel()

    users, err := h.Users.List(ctx)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": users})
}

// UpdateUser handles PATCH /v1/admin/users/:id {role?, is_active?,
// display_name?}.  An admin cannot demote or deactivate their own account.
//
// Demoting or deactivating a user revokes their refresh tokens.  Access
// tokens already issued keep their role claim until they expire, at most
// ACCESS_TOKEN_TTL_MIN later.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
    var req struct {
        Role        *string `json:"role"`
        IsActive    *bool   `json:"is_active"`
        DisplayName *string `json:"display_name"`
    }
    if err := c.Bind(&req); err != nil {
        return errorJSON(c, http.StatusBadRequest, "invalid_argument", "invalid request body")
    }
    var patch repository.UserPatch
    if req.Role != nil {
        r := model.Role(strings.ToLower(strings.TrimSpace(*req.Role)))
        if !r.Valid() {
            return errorJSON(c, http.StatusBadRequest, "invalid_argument", "role must be user or admin")
        }
        patch.Role = &r
    }
    patch.IsActive = req.IsActive
    if req.DisplayName != nil {
        if len(strings.TrimSpace(*req.DisplayName)) > maxDisplayNameLength {
            return errorJSON(c, http.StatusBadRequest, "invalid_argument", "display_name too long")
        }
        patch.DisplayName = req.DisplayName
    }
    if patch.Role == nil && patch.IsActive == nil && patch.DisplayName == nil {
        return errorJSON(c, http.StatusBadRequest, "invalid_argument", "nothing to update")
    }

    id := c.Param("id")
    if id == middleware.UserID(c) {
        if (patch.Role != nil && *patch.Role != model.RoleAdmin) || (patch.IsActive != nil && !*patch.IsActive) {
            return errorJSON(c, http.StatusBadRequest, "invalid_argument", "cannot demote or deactivate yourself")
        }
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    before, err := h.Users.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return errorJSON(c, http.StatusNotFound, "not_found", "user not found")
        }
        return writeError(c, err)
    }
    u, err := h.Users.Update(ctx, id, patch)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return errorJSON(c, http.StatusNotFound, "not_found", "user not found")
        }
        return writeError(c, err)
    }
    demoted := before.Role == model.RoleAdmin && u.Role != model.RoleAdmin
    if demoted || (before.IsActive && !u.IsActive) {
        if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
            return writeError(c, err)
        }
    }
    return c.JSON(http.StatusOK, u)
}

// DeleteUser handles DELETE /v1/admin/users/:id.  The account and its
// refresh tokens are removed; reservations it owns stay on the calendar
// under the snapshotted display name.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
    id := c.Param("id")
    if id == middleware.UserID(c) {
        return errorJSON(c, http.StatusBadRequest, "invalid_argument", "cannot delete yourself")
    }
    ctx, cancel := requestCtx(c)
    defer cancel()

    if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
        return writeError(c, err)
    }
    if err := h.Users.Delete(ctx, id); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return errorJSON(c, http.StatusNotFound, "not_found", "user not found")
        }
        return writeError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}
