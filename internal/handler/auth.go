package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/mosque-manager/internal/middleware"
	"github.com/iliyamo/mosque-manager/internal/model"
	"github.com/iliyamo/mosque-manager/internal/repository"
	"github.com/iliyamo/mosque-manager/internal/session"
	"github.com/iliyamo/mosque-manager/internal/utils"
)

// requestTimeout bounds the store work done by a single auth request.
const requestTimeout = 5 * time.Second

// Sessions is the token lifecycle used by the auth endpoints; it is
// satisfied by *session.Authority.
type Sessions interface {
	Issue(ctx context.Context, u model.User) (session.Pair, error)
	Login(ctx context.Context, login, secret string) (session.Pair, model.User, error)
	Rotate(ctx context.Context, refresh string) (session.Pair, error)
	Revoke(ctx context.Context, refresh string) error
	RevokeAll(ctx context.Context, userID uint64) (int64, error)
	Verify(ctx context.Context, token string) error
}

// Accounts is the part of the user directory the handlers write to.
type Accounts interface {
	Create(ctx context.Context, username, email, password string, staff bool) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Sessions Sessions
	Users    Accounts
	Log      *slog.Logger
}

func NewAuthHandler(s Sessions, u Accounts, log *slog.Logger) *AuthHandler {
	return &AuthHandler{Sessions: s, Users: u, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username" validate:"required,max=150,username"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// loginReq accepts the handle under "login", "username" or "email".
type loginReq struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginReq) handle() string {
	for _, v := range []string{r.Login, r.Username, r.Email} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// refreshReq accepts "refresh" and the older "refresh_token" field name.
type refreshReq struct {
	Refresh      string `json:"refresh"`
	RefreshToken string `json:"refresh_token"`
}

func (r refreshReq) token() string {
	if t := strings.TrimSpace(r.Refresh); t != "" {
		return t
	}
	return strings.TrimSpace(r.RefreshToken)
}

type verifyReq struct {
	Token string `json:"token"`
}

type userPart struct {
	ID        uint64     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	IsStaff   bool       `json:"is_staff"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

type authResp struct {
	User *userPart `json:"user,omitempty"`
	session.Pair
}

func toUserPart(u model.User) *userPart {
	return &userPart{ID: u.ID, Username: u.Username, Email: u.Email, IsStaff: u.IsStaff, LastLogin: u.LastLogin}
}

// Register creates an account and returns a token pair right away.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = model.NormalizeEmail(req.Email)
	if err := c.Validate(&req); err != nil {
		var verr *utils.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": verr.Fields})
		}
		return h.internal(c, "validate request failed", err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	id, err := h.Users.Create(ctx, req.Username, req.Email, req.Password, false)
	switch {
	case errors.Is(err, repository.ErrUsernameExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case err != nil:
		return h.internal(c, "create user failed", err)
	}

	u := model.User{ID: id, Username: req.Username, Email: req.Email, IsActive: true}
	pair, err := h.Sessions.Issue(ctx, u)
	if err != nil {
		return h.internal(c, "issue tokens failed", err)
	}
	return c.JSON(http.StatusCreated, authResp{User: toUserPart(u), Pair: pair})
}

// Login verifies credentials and returns a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	login := req.handle()
	if login == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "login/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	pair, u, err := h.Sessions.Login(ctx, login, req.Password)
	if errors.Is(err, session.ErrBadCredentials) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return h.internal(c, "login failed", err)
	}
	return c.JSON(http.StatusOK, authResp{User: toUserPart(u), Pair: pair})
}

// Refresh rotates a refresh token: the presented one stops working and a
// new pair is returned.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.token() == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	pair, err := h.Sessions.Rotate(ctx, req.token())
	if errors.Is(err, session.ErrInvalid) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}
	if err != nil {
		return h.internal(c, "refresh failed", err)
	}
	return c.JSON(http.StatusOK, authResp{Pair: pair})
}

// Verify answers 200 when the token would currently authenticate.
func (h *AuthHandler) Verify(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	err := h.Sessions.Verify(ctx, strings.TrimSpace(req.Token))
	if errors.Is(err, session.ErrInvalid) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}
	if err != nil {
		return h.internal(c, "verify failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{})
}

// Logout revokes the refresh token in the body.  It does not require an
// access token and succeeds for tokens that are already unusable.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.token() == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Sessions.Revoke(ctx, req.token()); err != nil {
		return h.internal(c, "logout failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// LogoutAll revokes every refresh token of the authenticated user.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	p, ok := middleware.Principal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	n, err := h.Sessions.RevokeAll(ctx, p.UserID)
	if err != nil {
		return h.internal(c, "logout all failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"revoked": n})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.Principal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, p.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	if err != nil {
		return h.internal(c, "load user failed", err)
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}

// AdminPing is a placeholder for staff-only routes.
func (h *AuthHandler) AdminPing(c echo.Context) error {
	p, _ := middleware.Principal(c)
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "user_id": p.UserID})
}

func (h *AuthHandler) internal(c echo.Context, msg string, err error) error {
	h.Log.Error(msg, "error", err, "path", c.Path())
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
}
