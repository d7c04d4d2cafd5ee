package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/mosque-manager/internal/session"
)

// Context keys written by BearerAuth.  user_id, username and is_staff are
// kept as separate entries so handlers can read a single value without
// importing session.
const (
	keyPrincipal = "principal"
	keyUserID    = "user_id"
	keyUsername  = "username"
	keyIsStaff   = "is_staff"
)

func setPrincipal(c echo.Context, p session.Principal) {
	c.Set(keyPrincipal, p)
	c.Set(keyUserID, p.UserID)
	c.Set(keyUsername, p.Username)
	c.Set(keyIsStaff, p.IsStaff)
}

// Principal returns the identity attached by BearerAuth.
func Principal(c echo.Context) (session.Principal, bool) {
	p, ok := c.Get(keyPrincipal).(session.Principal)
	return p, ok
}

// currentUserID returns the authenticated user's id, or "anon".
func currentUserID(c echo.Context) string {
	if id, ok := c.Get(keyUserID).(uint64); ok && id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
