package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/wgdashboard/wg_dashboard/internal/logging"
	"github.com/wgdashboard/wg_dashboard/internal/tokens"
)

// Decoder turns a bearer token into claims.
type Decoder interface {
	Decode(token string) (*tokens.AccessClaims, error)
}

type Bearer struct {
	Codec Decoder
}

func NewBearer(codec Decoder) *Bearer {
	return &Bearer{Codec: codec}
}

// RequireAuth rejects requests without a valid Authorization: Bearer token
// and stores the decoded claims on the context.
func (m *Bearer) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		l := logging.FromContext(c.Request().Context()).With("mw", "require_auth")

		raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := m.Codec.Decode(raw)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, tokens.ErrExpired) {
				msg = "token expired"
			}
			l.Warn("auth_failed", "status", 401, "reason", msg)
			return echo.NewHTTPError(http.StatusUnauthorized, msg)
		}

		id, err := claims.AccountID()
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		c.Set(CtxClaims, claims)
		c.Set(CtxUserID, id)
		c.Set(CtxRole, claims.Role)
		return next(c)
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}
