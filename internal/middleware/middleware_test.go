package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/mosque-manager/internal/config"
	"github.com/iliyamo/mosque-manager/internal/logger"
	"github.com/iliyamo/mosque-manager/internal/session"
)

type stubValidator map[string]session.Principal

func (s stubValidator) ValidateAccess(_ context.Context, raw string) (session.Principal, error) {
	p, ok := s[raw]
	if !ok {
		return session.Principal{}, session.ErrInvalid
	}
	return p, nil
}

var validator = stubValidator{
	"staff-token":  {UserID: 1, Username: "admin", IsStaff: true},
	"member-token": {UserID: 2, Username: "member"},
}

func newEcho(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/whoami", func(c echo.Context) error {
		p, _ := Principal(c)
		return c.JSON(http.StatusOK, echo.Map{"user_id": p.UserID, "uid": currentUserID(c)})
	}, mw...)
	return e
}

func do(e *echo.Echo, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestBearerAuth(t *testing.T) {
	e := newEcho(BearerAuth(validator))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer member-token", http.StatusOK},
		{"lower-case scheme", "bearer member-token", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, tt.header)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.NotEmpty(t, rec.Header().Get(echo.HeaderWWWAuthenticate))
			}
		})
	}

	rec := do(e, "Bearer member-token")
	assert.JSONEq(t, `{"user_id":2,"uid":"2"}`, rec.Body.String())
}

func TestRequireStaff(t *testing.T) {
	e := newEcho(BearerAuth(validator), RequireStaff())

	assert.Equal(t, http.StatusOK, do(e, "Bearer staff-token").Code)
	assert.Equal(t, http.StatusForbidden, do(e, "Bearer member-token").Code)
}

func TestRequireStaff_WithoutAuthIsForbidden(t *testing.T) {
	e := newEcho(RequireStaff())

	assert.Equal(t, http.StatusForbidden, do(e, "").Code)
}

func rateCfg() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl:test",
	}
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	e := newEcho(RateLimit(rateCfg(), rdb, logger.Discard()))

	first := do(e, "")
	second := do(e, "")
	third := do(e, "")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.NotEmpty(t, third.Header().Get("Retry-After"))
	assert.True(t, mr.Exists("rl:test:ip:192.0.2.1:route:GET /whoami"))
}

func TestRateLimit_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()
	e := newEcho(RateLimit(rateCfg(), rdb, logger.Discard()))

	for i := 0; i < 4; i++ {
		require.Equal(t, http.StatusOK, do(e, "").Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	cfg := rateCfg()
	cfg.Enabled = false
	e := newEcho(RateLimit(cfg, nil, logger.Discard()))

	for i := 0; i < 4; i++ {
		require.Equal(t, http.StatusOK, do(e, "").Code)
	}
}

func TestRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, "203.0.113.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/auth/login")
	c.Set(keyUserID, uint64(5))

	cfg := rateCfg()
	for strategy, want := range map[string]string{
		"ip":       "rl:test:ip:203.0.113.9",
		"user":     "rl:test:user:5",
		"ip_route": "rl:test:ip:203.0.113.9:route:POST /v1/auth/login",
		"":         "rl:test:ip:203.0.113.9:user:5:route:POST /v1/auth/login",
	} {
		cfg.KeyStrategy = strategy
		assert.Equal(t, want, rateKey(cfg, c), strategy)
	}
}
