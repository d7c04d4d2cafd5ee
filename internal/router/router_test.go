package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/mosque-manager/internal/config"
	"github.com/iliyamo/mosque-manager/internal/handler"
	"github.com/iliyamo/mosque-manager/internal/logger"
	"github.com/iliyamo/mosque-manager/internal/session"
)

type staffValidator struct{}

func (staffValidator) ValidateAccess(_ context.Context, raw string) (session.Principal, error) {
	switch raw {
	case "staff":
		return session.Principal{UserID: 1, IsStaff: true}, nil
	case "member":
		return session.Principal{UserID: 2}, nil
	}
	return session.Principal{}, session.ErrInvalid
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func newServer(t *testing.T, cfg config.Config) (*echo.Echo, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log, err := logger.NewWithWriter("info", "test", true, &buf)
	require.NoError(t, err)
	e := New(cfg, log)
	RegisterRoutes(e, "mosque-manager")
	RegisterAuth(e, handler.NewAuthHandler(nil, nil, log), staffValidator{}, passThrough)
	return e, &buf
}

func get(e *echo.Echo, path, bearer, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	if origin != "" {
		req.Header.Set(echo.HeaderOrigin, origin)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	e, logs := newServer(t, config.Config{})

	rec := get(e, "/health/", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"mosque-manager"}`, rec.Body.String())
	assert.Contains(t, logs.String(), `"uri":"/health/"`)
}

func TestAdminRequiresStaff(t *testing.T) {
	e, _ := newServer(t, config.Config{})

	assert.Equal(t, http.StatusUnauthorized, get(e, "/v1/admin/ping", "", "").Code)
	assert.Equal(t, http.StatusForbidden, get(e, "/v1/admin/ping", "member", "").Code)
	rec := get(e, "/v1/admin/ping", "staff", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","user_id":1}`, rec.Body.String())
}

func TestMeRequiresBearer(t *testing.T) {
	e, _ := newServer(t, config.Config{})

	assert.Equal(t, http.StatusUnauthorized, get(e, "/v1/me", "", "").Code)
}

func TestCORS(t *testing.T) {
	t.Run("debug allows any origin", func(t *testing.T) {
		e, _ := newServer(t, config.Config{Debug: true})
		rec := get(e, "/health/", "", "https://anything.example")
		assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	})

	t.Run("production ignores debug", func(t *testing.T) {
		e, _ := newServer(t, config.Config{Debug: true, Env: "production"})
		rec := get(e, "/health/", "", "https://anything.example")
		assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	})

	t.Run("allow list", func(t *testing.T) {
		e, _ := newServer(t, config.Config{AllowedOrigins: []string{"https://admin.example"}})
		ok := get(e, "/health/", "", "https://admin.example")
		denied := get(e, "/health/", "", "https://evil.example")
		assert.Equal(t, "https://admin.example", ok.Header().Get(echo.HeaderAccessControlAllowOrigin))
		assert.Empty(t, denied.Header().Get(echo.HeaderAccessControlAllowOrigin))
	})
}
