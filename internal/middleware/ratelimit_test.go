package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"

    "github.com/iliyamo/slot-calendar/internal/config"
)

func limitedEcho(cfg config.RateLimitConfig) *echo.Echo {
    e := echo.New()
    e.Use(NewTokenBucket(cfg, nil))
    e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
    return e
}

func hit(e *echo.Echo, ip string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(http.MethodGet, "/ping", nil)
    req.RemoteAddr = ip + ":1234"
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestTokenBucketLocalFallback(t *testing.T) {
    e := limitedEcho(config.RateLimitConfig{
        Enabled:        true,
        Capacity:       2,
        RefillTokens:   1,
        RefillInterval: time.Hour,
        TTL:            time.Hour,
        KeyStrategy:    "ip",
        Prefix:         "rl",
    })

    assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
    assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)

    rec := hit(e, "10.0.0.1")
    assert.Equal(t, http.StatusTooManyRequests, rec.Code)
    assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
    assert.NotEmpty(t, rec.Header().Get("Retry-After"))

    // Buckets are per key.
    assert.Equal(t, http.StatusOK, hit(e, "10.0.0.2").Code)
}

func TestTokenBucketDisabled(t *testing.T) {
    e := limitedEcho(config.RateLimitConfig{Enabled: false})
    for i := 0; i < 5; i++ {
        assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
    }
}

func TestBuildRateKey(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
    req.RemoteAddr = "10.0.0.7:5555"
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/reservations")
    c.Set(ctxUserID, "u-1")

    assert.Equal(t, "rl:ip:10.0.0.7", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}, c))
    assert.Equal(t, "rl:user:u-1:route:POST /v1/reservations", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user_route"}, c))
    assert.Equal(t, "rl:ip:10.0.0.7:user:u-1:route:POST /v1/reservations", buildRateKey(config.RateLimitConfig{Prefix: "rl"}, c))
}

func TestAsInt64(t *testing.T) {
    assert.Equal(t, int64(3), asInt64(int64(3)))
    assert.Equal(t, int64(4), asInt64(4.9))
    assert.Equal(t, int64(12), asInt64("12"))
    assert.Equal(t, int64(0), asInt64(nil))
}
