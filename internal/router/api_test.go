package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slot-calendar/internal/booking"
	"github.com/iliyamo/slot-calendar/internal/calendar"
	"github.com/iliyamo/slot-calendar/internal/config"
	"github.com/iliyamo/slot-calendar/internal/handler"
	"github.com/iliyamo/slot-calendar/internal/ledger"
	"github.com/iliyamo/slot-calendar/internal/router"
	"github.com/iliyamo/slot-calendar/internal/testfixtures"
)

const secret = "api-test-secret"

func newAPI(t *testing.T) *echo.Echo {
	t.Helper()
	f := testfixtures.NewSQLite(t)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	cfg := config.Config{
		JWTSecret:      secret,
		AccessTTLMin:   5,
		RefreshTTLDays: 1,
		BcryptCost:     4,
		AdminEmails:    []string{"admin@example.com"},
	}
	bookings := booking.NewService(f.Store, f.Reader, nil, booking.WithLogger(log), booking.WithBackoff(0))
	cacheCfg := config.CacheConfig{Enabled: false}

	e := echo.New()
	router.RegisterRoutes(e, &handler.HealthHandler{DB: f.DB})
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, f.Users, f.Tokens), secret)
	router.RegisterReservations(e,
		handler.NewReservationHandler(bookings),
		handler.NewCalendarHandler(calendar.NewService(f.Reservations, f.Counters)),
		secret, cacheCfg, nil)
	router.RegisterAdmin(e, handler.NewAdminHandler(bookings, ledger.NewService(f.Counters, 1, log), f.Users, f.Tokens), secret, cacheCfg, nil)
	return e
}

func call(t *testing.T, e *echo.Echo, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && rec.Header().Get(echo.HeaderContentType) != echo.MIMETextPlainCharsetUTF8 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

type session struct {
	userID  string
	access  string
	refresh string
}

func register(t *testing.T, e *echo.Echo, email, name string) session {
	t.Helper()
	code, body := call(t, e, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email": email, "password": "password123", "display_name": name,
	})
	require.Equal(t, http.StatusCreated, code, body)
	return session{
		userID:  body["user"].(map[string]any)["id"].(string),
		access:  body["access"].(map[string]any)["token"].(string),
		refresh: body["refresh"].(map[string]any)["token"].(string),
	}
}

func TestReservationFlow(t *testing.T) {
	e := newAPI(t)
	admin := register(t, e, "admin@example.com", "Admin")
	alice := register(t, e, "alice@example.com", "Alice")
	bob := register(t, e, "bob@example.com", "Bob")

	code, body := call(t, e, http.MethodPost, "/v1/admin/slots", alice.access, map[string]any{"from": "2025-06-01", "to": "2025-06-02"})
	assert.Equal(t, http.StatusForbidden, code)

	code, body = call(t, e, http.MethodPost, "/v1/admin/slots", admin.access, map[string]any{"from": "2025-06-01", "to": "2025-06-02"})
	require.Equal(t, http.StatusCreated, code, body)
	assert.EqualValues(t, 6, body["created"])

	code, body = call(t, e, http.MethodPost, "/v1/reservations", alice.access, map[string]any{"date": "2025-06-01", "slot": "Morning", "notes": "hi"})
	require.Equal(t, http.StatusCreated, code, body)
	id := body["id"].(string)
	assert.Equal(t, "Alice", body["reservation"].(map[string]any)["owner_display_name"])

	code, body = call(t, e, http.MethodPost, "/v1/reservations", bob.access, map[string]any{"date": "2025-06-01", "slot": "morning"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "slot_full", body["error"])

	code, body = call(t, e, http.MethodPost, "/v1/reservations", bob.access, map[string]any{"date": "2025-09-01", "slot": "morning"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "slot_not_found", body["error"])

	code, body = call(t, e, http.MethodPost, "/v1/reservations", bob.access, map[string]any{"date": "2025-06-01", "slot": "noon"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_argument", body["error"])

	code, body = call(t, e, http.MethodDelete, "/v1/reservations/"+id, bob.access, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "permission_denied", body["error"])

	code, body = call(t, e, http.MethodGet, "/v1/calendar?from=2025-06-01&to=2025-06-02", bob.access, nil)
	require.Equal(t, http.StatusOK, code)
	days := body["days"].([]any)
	require.Len(t, days, 2)
	morning := days[0].(map[string]any)["slots"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 1, morning["count"])
	assert.EqualValues(t, 0, morning["available"])

	code, body = call(t, e, http.MethodPut, "/v1/reservations/"+id, admin.access, map[string]any{"date": "2025-06-02", "slot": "afternoon", "notes": "moved"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "2025-06-02", body["reservation"].(map[string]any)["date"])

	code, body = call(t, e, http.MethodGet, "/v1/slots?from=2025-06-01&to=2025-06-02", alice.access, nil)
	require.Equal(t, http.StatusOK, code)
	counts := map[string]float64{}
	for _, it := range body["items"].([]any) {
		m := it.(map[string]any)
		counts[m["date"].(string)+"_"+m["slot"].(string)] = m["count"].(float64)
	}
	assert.Equal(t, float64(0), counts["2025-06-01_morning"])
	assert.Equal(t, float64(1), counts["2025-06-02_afternoon"])

	code, body = call(t, e, http.MethodGet, "/v1/admin/reservations/"+id+"/history", admin.access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 2)

	code, body = call(t, e, http.MethodGet, "/v1/admin/ledger/audit?from=2025-06-01&to=2025-06-02", admin.access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["drift"])

	code, body = call(t, e, http.MethodPost, "/v1/reservations/"+id+"/cancel", alice.access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cancelled", body["reservation"].(map[string]any)["status"])

	code, body = call(t, e, http.MethodPut, "/v1/reservations/"+id, alice.access, map[string]any{"date": "2025-06-01", "slot": "evening"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "reservation_cancelled", body["error"])

	code, body = call(t, e, http.MethodDelete, "/v1/reservations/"+id, alice.access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, body["id"])

	code, body = call(t, e, http.MethodGet, "/v1/reservations/"+id, alice.access, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["error"])

	code, _ = call(t, e, http.MethodGet, "/v1/reservations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestIdempotencyHeader(t *testing.T) {
	e := newAPI(t)
	admin := register(t, e, "admin@example.com", "Admin")
	alice := register(t, e, "alice@example.com", "Alice")
	code, _ := call(t, e, http.MethodPost, "/v1/admin/slots", admin.access, map[string]any{"from": "2025-06-01", "to": "2025-06-01", "capacity": 5})
	require.Equal(t, http.StatusCreated, code)

	post := func(slot string) *httptest.ResponseRecorder {
		body, err := json.Marshal(map[string]string{"date": "2025-06-01", "slot": slot})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/v1/reservations", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+alice.access)
		req.Header.Set(handler.IdempotencyKeyHeader, "retry-me")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}
	id := func(rec *httptest.ResponseRecorder) string {
		var out map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return out["id"].(string)
	}

	first := post("evening")
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(handler.IdempotentReplayedHeader))

	again := post("evening")
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, "true", again.Header().Get(handler.IdempotentReplayedHeader))
	assert.Equal(t, id(first), id(again))

	other := post("morning")
	assert.Equal(t, http.StatusUnprocessableEntity, other.Code)
	assert.Contains(t, other.Body.String(), "idempotency_mismatch")

	code, body := call(t, e, http.MethodGet, "/v1/reservations", alice.access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 1)
}

func TestAuthFlow(t *testing.T) {
	e := newAPI(t)
	s := register(t, e, "carol@example.com", "")

	code, body := call(t, e, http.MethodPost, "/v1/auth/register", "", map[string]string{"email": "CAROL@example.com", "password": "password123"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "email_exists", body["error"])

	code, _ = call(t, e, http.MethodPost, "/v1/auth/register", "", map[string]string{"email": "dave@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = call(t, e, http.MethodGet, "/v1/me", s.access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "carol", body["display_name"])
	assert.Equal(t, "user", body["role"])

	code, _ = call(t, e, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "carol@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = call(t, e, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "carol@example.com", "password": "password123"})
	assert.Equal(t, http.StatusOK, code)

	code, body = call(t, e, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": s.refresh})
	require.Equal(t, http.StatusOK, code)
	rotated := body["refresh"].(map[string]any)["token"].(string)
	assert.NotEqual(t, s.refresh, rotated)

	// The old refresh token was revoked by the rotation.
	code, _ = call(t, e, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": s.refresh})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = call(t, e, http.MethodPost, "/v1/auth/logout", s.access, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = call(t, e, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": rotated})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAdminUserManagement(t *testing.T) {
	e := newAPI(t)
	admin := register(t, e, "admin@example.com", "Admin")
	bob := register(t, e, "bob@example.com", "Bob")

	code, _ := call(t, e, http.MethodPatch, "/v1/admin/users/"+admin.userID, admin.access, map[string]any{"role": "user"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := call(t, e, http.MethodPatch, "/v1/admin/users/"+bob.userID, admin.access, map[string]any{"is_active": false})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["is_active"])

	code, _ = call(t, e, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "bob@example.com", "password": "password123"})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = call(t, e, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": bob.refresh})
	assert.Equal(t, http.StatusUnauthorized, code, "deactivation revokes refresh tokens")

	carol := register(t, e, "carol@example.com", "Carol")
	code, _ = call(t, e, http.MethodPatch, "/v1/admin/users/"+carol.userID, admin.access, map[string]any{"role": "admin"})
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, e, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": carol.refresh})
	require.Equal(t, http.StatusOK, code, "promotion keeps refresh tokens")

	dave := register(t, e, "dave@example.com", "Dave")
	code, _ = call(t, e, http.MethodPatch, "/v1/admin/users/"+dave.userID, admin.access, map[string]any{"role": "admin"})
	require.Equal(t, http.StatusOK, code)
	code, body = call(t, e, http.MethodPatch, "/v1/admin/users/"+dave.userID, admin.access, map[string]any{"role": "user", "display_name": " David "})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "user", body["role"])
	assert.Equal(t, "David", body["display_name"])
	code, _ = call(t, e, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": dave.refresh})
	assert.Equal(t, http.StatusUnauthorized, code, "demotion revokes refresh tokens")

	code, _ = call(t, e, http.MethodDelete, "/v1/admin/users/"+admin.userID, admin.access, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = call(t, e, http.MethodDelete, "/v1/admin/users/"+dave.userID, admin.access, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = call(t, e, http.MethodDelete, "/v1/admin/users/"+dave.userID, admin.access, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = call(t, e, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "dave@example.com", "password": "password123"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = call(t, e, http.MethodPatch, "/v1/admin/users/missing", admin.access, map[string]any{"role": "admin"})
	assert.Equal(t, http.StatusNotFound, code)

	code, body = call(t, e, http.MethodGet, "/v1/admin/users", admin.access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 3)
}

func TestHealth(t *testing.T) {
	e := newAPI(t)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
