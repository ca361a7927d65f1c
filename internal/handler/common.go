package handler

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/slot-calendar/internal/booking"
    "github.com/iliyamo/slot-calendar/internal/ledger"
    "github.com/iliyamo/slot-calendar/internal/middleware"
    "github.com/iliyamo/slot-calendar/internal/model"
    "github.com/iliyamo/slot-calendar/internal/repository"
)

const requestTimeout = 5 * time.Second

// getCaller builds the protocol identity from the claims JWTAuth stored.
func getCaller(c echo.Context) booking.Caller {
    return booking.Caller{
        ID:          middleware.UserID(c),
        Role:        middleware.Role(c),
        DisplayName: middleware.DisplayName(c),
    }
}

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func errorJSON(c echo.Context, status int, code, msg string) error {
    return c.JSON(status, echo.Map{"error": code, "message": msg})
}

// writeError maps an error to its HTTP status and a distinct error code so
// that clients can tell "try another slot" from "not allowed".  Unknown
// errors become 500 without leaking details.
func writeError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, booking.ErrUnauthenticated):
        return errorJSON(c, http.StatusUnauthorized, "unauthenticated", booking.ErrUnauthenticated.Error())
    case errors.Is(err, booking.ErrNotFound):
        return errorJSON(c, http.StatusNotFound, "not_found", booking.ErrNotFound.Error())
    case errors.Is(err, booking.ErrPermissionDenied):
        return errorJSON(c, http.StatusForbidden, "permission_denied", booking.ErrPermissionDenied.Error())
    case errors.Is(err, booking.ErrSlotFull):
        return errorJSON(c, http.StatusConflict, "slot_full", booking.ErrSlotFull.Error())
    case errors.Is(err, booking.ErrSlotNotFound):
        return errorJSON(c, http.StatusNotFound, "slot_not_found", booking.ErrSlotNotFound.Error())
    case errors.Is(err, booking.ErrReservationCancelled):
        return errorJSON(c, http.StatusConflict, "reservation_cancelled", booking.ErrReservationCancelled.Error())
    case errors.Is(err, booking.ErrIdempotencyMismatch):
        return errorJSON(c, http.StatusUnprocessableEntity, "idempotency_mismatch", booking.ErrIdempotencyMismatch.Error())
    case errors.Is(err, booking.ErrTransactionConflict):
        c.Response().Header().Set("Retry-After", "1")
        return errorJSON(c, http.StatusServiceUnavailable, "transaction_conflict", booking.ErrTransactionConflict.Error())
    case errors.Is(err, booking.ErrInvalidArgument),
        errors.Is(err, model.ErrInvalidDate),
        errors.Is(err, model.ErrInvalidRange),
        errors.Is(err, ledger.ErrInvalidCapacity),
        errors.Is(err, repository.ErrCapacityBelowCount):
        return errorJSON(c, http.StatusBadRequest, "invalid_argument", err.Error())
    case errors.Is(err, context.DeadlineExceeded):
        return errorJSON(c, http.StatusGatewayTimeout, "timeout", "request timed out")
    }
    c.Logger().Errorf("unhandled error: %v", err)
    return errorJSON(c, http.StatusInternalServerError, "internal", "internal error")
}
