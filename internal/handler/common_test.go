package handler

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/slot-calendar/internal/booking"
    "github.com/iliyamo/slot-calendar/internal/model"
    "github.com/iliyamo/slot-calendar/internal/repository"
)

func TestWriteError(t *testing.T) {
    tests := []struct {
        err    error
        status int
        code   string
    }{
        {booking.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
        {booking.ErrNotFound, http.StatusNotFound, "not_found"},
        {booking.ErrPermissionDenied, http.StatusForbidden, "permission_denied"},
        {booking.ErrSlotFull, http.StatusConflict, "slot_full"},
        {booking.ErrSlotNotFound, http.StatusNotFound, "slot_not_found"},
        {sql.ErrNoRows, http.StatusInternalServerError, "internal"},
        {booking.ErrReservationCancelled, http.StatusConflict, "reservation_cancelled"},
        {booking.ErrIdempotencyMismatch, http.StatusUnprocessableEntity, "idempotency_mismatch"},
        {fmt.Errorf("%w: busy", booking.ErrTransactionConflict), http.StatusServiceUnavailable, "transaction_conflict"},
        {fmt.Errorf("%w: bad slot", booking.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
        {model.ErrInvalidRange, http.StatusBadRequest, "invalid_argument"},
        {repository.ErrCapacityBelowCount, http.StatusBadRequest, "invalid_argument"},
        {context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
        {errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
    }
    e := echo.New()
    for _, tt := range tests {
        t.Run(tt.code+"/"+tt.err.Error(), func(t *testing.T) {
            rec := httptest.NewRecorder()
            c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
            require.NoError(t, writeError(c, tt.err))
            assert.Equal(t, tt.status, rec.Code)

            var body map[string]string
            require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
            assert.Equal(t, tt.code, body["error"])
            assert.NotEmpty(t, body["message"])
            if tt.status == http.StatusInternalServerError {
                assert.NotContains(t, body["message"], "disk")
            }
        })
    }
}

func TestGetCaller(t *testing.T) {
    e := echo.New()
    c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
    assert.False(t, getCaller(c).Authenticated())

    c.Set("user_id", "u-1")
    c.Set("role", "admin")
    c.Set("display_name", "Ada")
    caller := getCaller(c)
    assert.Equal(t, booking.Caller{ID: "u-1", Role: model.RoleAdmin, DisplayName: "Ada"}, caller)
}
