package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-calendar/internal/config"
	"github.com/iliyamo/slot-calendar/internal/middleware"
	"github.com/iliyamo/slot-calendar/internal/model"
	"github.com/iliyamo/slot-calendar/internal/repository"
	"github.com/iliyamo/slot-calendar/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

const maxDisplayNameLength = 100

// ----- DTOs -----

type registerReq struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	User    model.User `json:"user"`
	Access  tokenPart  `json:"access"`
	Refresh tokenPart  `json:"refresh"`
}

// Register creates an account and returns a token pair.  Emails listed in
// ADMIN_EMAILS receive the admin role.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_argument", "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return errorJSON(c, http.StatusBadRequest, "invalid_argument", "valid email required")
	}
	if err := utils.CheckPassword(req.Password); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_argument", err.Error())
	}
	if req.DisplayName == "" {
		req.DisplayName = strings.SplitN(req.Email, "@", 2)[0]
	}
	if len(req.DisplayName) > maxDisplayNameLength {
		return errorJSON(c, http.StatusBadRequest, "invalid_argument", "display_name too long")
	}
	role := model.RoleUser
	if h.Cfg.IsAdminEmail(req.Email) {
		role = model.RoleAdmin
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.Create(ctx, req.Email, req.Password, req.DisplayName, role, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return errorJSON(c, http.StatusConflict, "email_exists", err.Error())
		}
		return errorJSON(c, http.StatusInternalServerError, "internal", "create user failed")
	}
	return h.issue(c, http.StatusCreated, u)
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_argument", "invalid body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return errorJSON(c, http.StatusBadRequest, "invalid_argument", "email/password required")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errorJSON(c, http.StatusUnauthorized, "unauthenticated", "invalid credentials")
		}
		return errorJSON(c, http.StatusInternalServerError, "internal", "query failed")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return errorJSON(c, http.StatusUnauthorized, "unauthenticated", "invalid credentials")
	}
	if !u.IsActive {
		return errorJSON(c, http.StatusForbidden, "permission_denied", "account is disabled")
	}
	return h.issue(c, http.StatusOK, u)
}

// Refresh validates a refresh token by hash, revokes it and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return errorJSON(c, http.StatusBadRequest, "invalid_argument", "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := requestCtx(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return errorJSON(c, http.StatusUnauthorized, "unauthenticated", "invalid refresh")
	}
	_ = h.Tokens.RevokeByHash(ctx, hash)

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errorJSON(c, http.StatusUnauthorized, "unauthenticated", "invalid refresh")
		}
		return errorJSON(c, http.StatusInternalServerError, "internal", "load user failed")
	}
	if !u.IsActive {
		return errorJSON(c, http.StatusForbidden, "permission_denied", "account is disabled")
	}
	return h.issue(c, http.StatusOK, u)
}

// Logout revokes the refresh token in the body, or every refresh token of
// the caller when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := requestCtx(c)
	defer cancel()

	if refreshToken != "" {
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return errorJSON(c, http.StatusUnauthorized, "unauthenticated", "invalid refresh token")
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return errorJSON(c, http.StatusInternalServerError, "internal", "logout failed")
		}
		return c.NoContent(http.StatusNoContent)
	}
	uid := middleware.UserID(c)
	if uid == "" {
		return errorJSON(c, http.StatusUnauthorized, "unauthenticated", "unauthorized")
	}
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return errorJSON(c, http.StatusInternalServerError, "internal", "logout failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's account.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, middleware.UserID(c))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errorJSON(c, http.StatusUnauthorized, "unauthenticated", "unknown user")
		}
		return errorJSON(c, http.StatusInternalServerError, "internal", "load user failed")
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AuthHandler) issue(c echo.Context, status int, u model.User) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, string(u.Role), u.DisplayName, h.Cfg.AccessTTLMin)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "internal", "issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "internal", "issue refresh failed")
	}
	if err := h.Tokens.StoreRefresh(c.Request().Context(), u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return errorJSON(c, http.StatusInternalServerError, "internal", "save refresh failed")
	}
	return c.JSON(status, authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}
