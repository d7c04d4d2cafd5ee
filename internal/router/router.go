package router // package router wires handlers and middleware onto an Echo instance

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/mosque-manager/internal/config"
	"github.com/iliyamo/mosque-manager/internal/handler"
	"github.com/iliyamo/mosque-manager/internal/middleware"
	"github.com/iliyamo/mosque-manager/internal/utils"
)

// New returns an Echo instance with the process-wide middleware installed:
// panic recovery, request logging into slog and CORS.
func New(cfg config.Config, log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = utils.NewRequestValidator()

	e.Use(echomw.Recover())
	e.Use(requestLogger(log))
	if cors := corsConfig(cfg); cors != nil {
		e.Use(echomw.CORSWithConfig(*cors))
	}
	return e
}

// corsConfig allows every origin in debug mode, mirroring the permissive
// development setup.  Outside debug only ALLOWED_ORIGINS are accepted and no
// CORS middleware is installed when that list is empty.
func corsConfig(cfg config.Config) *echomw.CORSConfig {
	switch {
	case cfg.Debug && !cfg.IsProduction():
		return &echomw.CORSConfig{AllowOrigins: []string{"*"}}
	case len(cfg.AllowedOrigins) > 0:
		return &echomw.CORSConfig{
			AllowOrigins: cfg.AllowedOrigins,
			AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
		}
	}
	return nil
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			log.LogAttrs(context.Background(), level, "request", attrs...)
			return nil
		},
	})
}

// RegisterRoutes registers routes that do not require authentication.
// /health/ is the liveness probe; it never touches a dependency.
func RegisterRoutes(e *echo.Echo, service string) {
	e.GET("/health/", handler.Health(service))
}

// RegisterAuth registers the authentication endpoints.  Credential
// exchanges live under /v1/auth behind limiter; everything else under /v1
// requires a bearer access token.  /v1/admin additionally requires staff.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, v middleware.AccessValidator, limiter echo.MiddlewareFunc) {
	bearer := middleware.BearerAuth(v)

	g := e.Group("/v1/auth", limiter)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/verify", a.Verify)
	g.POST("/logout", a.Logout)
	g.POST("/logout-all", a.LogoutAll, bearer)

	auth := e.Group("/v1", bearer)
	auth.GET("/me", a.Me)

	admin := auth.Group("/admin", middleware.RequireStaff())
	admin.GET("/ping", a.AdminPing)
}
