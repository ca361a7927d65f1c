package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/slot-calendar/internal/booking"
    "github.com/iliyamo/slot-calendar/internal/model"
)

// IdempotencyKeyHeader carries the client token that makes a create safe
// to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotentReplayedHeader marks a create answered from an earlier request.
const IdempotentReplayedHeader = "Idempotent-Replayed"

// ReservationHandler exposes the reservation protocol to authenticated
// users.  Every method assumes JWTAuth has run.
type ReservationHandler struct {
    Bookings *booking.Service
}

func NewReservationHandler(svc *booking.Service) *ReservationHandler {
    if svc == nil {
        panic("nil booking service passed to NewReservationHandler")
    }
    return &ReservationHandler{Bookings: svc}
}

type reservationReq struct {
    Date  string `json:"date"`
    Slot  string `json:"slot"`
    Notes string `json:"notes"`
}

func (r reservationReq) normalized() reservationReq {
    r.Date = strings.TrimSpace(r.Date)
    r.Slot = strings.ToLower(strings.TrimSpace(r.Slot))
    r.Notes = strings.TrimSpace(r.Notes)
    return r
}

type reservationResp struct {
    ID          string            `json:"id"`
    Reservation model.Reservation `json:"reservation"`
}

// Create handles POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
    var req reservationReq
    if err := c.Bind(&req); err != nil {
        return errorJSON(c, http.StatusBadRequest, "invalid_argument", "invalid request body")
    }
    req = req.normalized()

    ctx, cancel := requestCtx(c)
    defer cancel()

    r, replayed, err := h.Bookings.CreateOrReplay(ctx, booking.CreateInput{
        Date:           req.Date,
        Slot:           model.Slot(req.Slot),
        Notes:          req.Notes,
        IdempotencyKey: c.Request().Header.Get(IdempotencyKeyHeader),
    }, getCaller(c))
    if err != nil {
        return writeError(c, err)
    }
    if replayed {
        c.Response().Header().Set(IdempotentReplayedHeader, "true")
        return c.JSON(http.StatusOK, reservationResp{ID: r.ID, Reservation: r})
    }
    return c.JSON(http.StatusCreated, reservationResp{ID: r.ID, Reservation: r})
}

// List handles GET /v1/reservations and returns the caller's reservations.
func (h *ReservationHandler) List(c echo.Context) error {
    ctx, cancel := requestCtx(c)
    defer cancel()

    items, err := h.Bookings.ListMine(ctx, getCaller(c))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
    ctx, cancel := requestCtx(c)
    defer cancel()

    r, err := h.Bookings.Get(ctx, c.Param("id"), getCaller(c))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, r)
}

// Update handles PUT /v1/reservations/:id.
func (h *ReservationHandler) Update(c echo.Context) error {
    var req reservationReq
    if err := c.Bind(&req); err != nil {
        return errorJSON(c, http.StatusBadRequest, "invalid_argument", "invalid request body")
    }
    req = req.normalized()

    ctx, cancel := requestCtx(c)
    defer cancel()

    r, err := h.Bookings.Update(ctx, c.Param("id"), booking.UpdateInput{
        Date:  req.Date,
        Slot:  model.Slot(req.Slot),
        Notes: req.Notes,
    }, getCaller(c))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, reservationResp{ID: r.ID, Reservation: r})
}

// Cancel handles POST /v1/reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    ctx, cancel := requestCtx(c)
    defer cancel()

    r, err := h.Bookings.Cancel(ctx, c.Param("id"), getCaller(c))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, reservationResp{ID: r.ID, Reservation: r})
}

// Delete handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Delete(c echo.Context) error {
    ctx, cancel := requestCtx(c)
    defer cancel()

    id, err := h.Bookings.Delete(ctx, c.Param("id"), getCaller(c))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"id": id})
}
