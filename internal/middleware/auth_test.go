package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/slot-calendar/internal/model"
    "github.com/iliyamo/slot-calendar/internal/utils"
)

const testSecret = "test-secret"

func protectedEcho() *echo.Echo {
    e := echo.New()
    e.GET("/me", func(c echo.Context) error {
        return c.JSON(http.StatusOK, echo.Map{"id": UserID(c), "role": Role(c), "name": DisplayName(c)})
    }, JWTAuth(testSecret), RequireRole(model.RoleAdmin))
    return e
}

func bearer(t *testing.T, role string) string {
    t.Helper()
    at, err := utils.NewAccessToken(testSecret, "u-1", role, "Ada", 5)
    require.NoError(t, err)
    return "Bearer " + at.Token
}

func TestJWTAuthAndRole(t *testing.T) {
    e := protectedEcho()

    tests := []struct {
        name   string
        header string
        status int
    }{
        {name: "no header", status: http.StatusUnauthorized},
        {name: "not bearer", header: "Basic abc", status: http.StatusUnauthorized},
        {name: "bad token", header: "Bearer nope", status: http.StatusUnauthorized},
        {name: "wrong role", header: bearer(t, "user"), status: http.StatusForbidden},
        {name: "admin", header: bearer(t, "admin"), status: http.StatusOK},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            req := httptest.NewRequest(http.MethodGet, "/me", nil)
            if tt.header != "" {
                req.Header.Set("Authorization", tt.header)
            }
            rec := httptest.NewRecorder()
            e.ServeHTTP(rec, req)
            assert.Equal(t, tt.status, rec.Code)
            if tt.status == http.StatusOK {
                assert.JSONEq(t, `{"id":"u-1","role":"admin","name":"Ada"}`, rec.Body.String())
            }
        })
    }
}

func TestCurrentUserID(t *testing.T) {
    e := echo.New()
    c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
    assert.Equal(t, "anon", currentUserID(c))
    c.Set(ctxUserID, "u-9")
    assert.Equal(t, "u-9", currentUserID(c))
}
