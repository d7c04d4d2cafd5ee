package middleware // package middleware contains reusable HTTP middleware functions

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/mosque-manager/internal/session"
)

// AccessValidator is satisfied by *session.Authority.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, raw string) (session.Principal, error)
}

// BearerAuth returns an Echo middleware that validates the access token in
// the Authorization header and stores the resulting principal in the
// context (see Principal).  Expired, malformed and wrong-type tokens all get
// the same 401 body.  Store failures are not possible here because access
// tokens are never looked up.
func BearerAuth(v AccessValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="api"`)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}

			p, err := v.ValidateAccess(c.Request().Context(), raw)
			if err != nil {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer error="invalid_token"`)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			setPrincipal(c, p)
			return next(c)
		}
	}
}

// bearerToken extracts the credential from an Authorization header value.
// The scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
