package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wgdashboard/wg_dashboard/internal/authz"
	"github.com/wgdashboard/wg_dashboard/internal/tokens"
)

const (
	CtxClaims = "claims"
	CtxUserID = "user_id"
	CtxRole   = "role"
)

func Claims(c echo.Context) (*tokens.AccessClaims, bool) {
	claims, ok := c.Get(CtxClaims).(*tokens.AccessClaims)
	return claims, ok && claims != nil
}

// ActorFrom returns the authenticated caller, or 401 when RequireAuth did
// not run.
func ActorFrom(c echo.Context) (authz.Actor, error) {
	id, ok := c.Get(CtxUserID).(uint)
	role, _ := c.Get(CtxRole).(string)
	if !ok || id == 0 || role == "" {
		return authz.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return authz.Actor{ID: id, Role: role}, nil
}
