package utils

import (
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
    at, err := NewAccessToken("secret", "user-1", "admin", "Ada", 15)
    require.NoError(t, err)
    assert.WithinDuration(t, time.Now().Add(15*time.Minute), at.Exp, 5*time.Second)

    claims, err := ParseAccessToken("secret", at.Token)
    require.NoError(t, err)
    assert.Equal(t, "user-1", claims.Subject)
    assert.Equal(t, "admin", claims.Role)
    assert.Equal(t, "Ada", claims.Name)
}

func TestParseAccessTokenRejects(t *testing.T) {
    good, err := NewAccessToken("secret", "user-1", "user", "", 15)
    require.NoError(t, err)
    expired, err := NewAccessToken("secret", "user-1", "user", "", -5)
    require.NoError(t, err)
    noSubject, err := NewAccessToken("secret", "", "user", "", 15)
    require.NoError(t, err)
    noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
        Role:             "user",
        RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
    }).SignedString([]byte("secret"))
    require.NoError(t, err)
    unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
        RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
    }).SignedString(jwt.UnsafeAllowNoneSignatureType)
    require.NoError(t, err)

    tests := []struct {
        name   string
        secret string
        raw    string
    }{
        {name: "wrong secret", secret: "other", raw: good.Token},
        {name: "expired", secret: "secret", raw: expired.Token},
        {name: "missing subject", secret: "secret", raw: noSubject.Token},
        {name: "missing exp", secret: "secret", raw: noExp},
        {name: "alg none", secret: "secret", raw: unsigned},
        {name: "garbage", secret: "secret", raw: "not.a.jwt"},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            _, err := ParseAccessToken(tt.secret, tt.raw)
            assert.ErrorIs(t, err, ErrInvalidToken)
        })
    }
}

func TestRefreshToken(t *testing.T) {
    a, err := NewRefreshToken(30)
    require.NoError(t, err)
    b, err := NewRefreshToken(30)
    require.NoError(t, err)
    assert.Len(t, a.Raw, 96)
    assert.NotEqual(t, a.Raw, b.Raw)
    assert.Len(t, HashRefreshRaw(a.Raw), 64)
    assert.Equal(t, HashRefreshRaw(a.Raw), HashRefreshRaw(a.Raw))
}
