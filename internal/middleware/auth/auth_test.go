package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wgdashboard/wg_dashboard/internal/models"
	"github.com/wgdashboard/wg_dashboard/internal/tokens"
)

var testKey = []byte("middleware-test-secret-0123456789")

func newCodec(ttl time.Duration) *tokens.Codec {
	return tokens.NewCodec(tokens.CodecConfig{Key: testKey, TTL: ttl})
}

func tokenFor(t *testing.T, codec *tokens.Codec, id uint, role string) string {
	t.Helper()
	tok, _, err := codec.Issue(tokens.ClaimsFor(&models.Account{ID: id, Username: "alice", Role: role}))
	require.NoError(t, err)
	return tok
}

func run(t *testing.T, mw echo.MiddlewareFunc, header string, h echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, mw(h)(c)
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	return he.Code
}

func TestRequireAuth(t *testing.T) {
	codec := newCodec(0)
	b := NewBearer(codec)
	ok := func(c echo.Context) error {
		actor, err := ActorFrom(c)
		if err != nil {
			return err
		}
		claims, found := Claims(c)
		if !found {
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, echo.Map{"id": actor.ID, "role": actor.Role, "username": claims.Username})
	}

	t.Run("valid", func(t *testing.T) {
		rec, err := run(t, b.RequireAuth, "Bearer "+tokenFor(t, codec, 7, models.RoleUser), ok)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"id":7,"role":"user","username":"alice"}`, rec.Body.String())
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := run(t, b.RequireAuth, "", ok)
		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
	})

	t.Run("wrong scheme", func(t *testing.T) {
		_, err := run(t, b.RequireAuth, "Basic abc", ok)
		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := run(t, b.RequireAuth, "Bearer not.a.jwt", ok)
		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
	})

	t.Run("other key", func(t *testing.T) {
		other := tokens.NewCodec(tokens.CodecConfig{Key: []byte("another-secret-another-secret-xx")})
		_, err := run(t, b.RequireAuth, "Bearer "+tokenFor(t, other, 7, models.RoleUser), ok)
		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
	})

	t.Run("expired", func(t *testing.T) {
		claims := tokens.ClaimsFor(&models.Account{ID: 7, Username: "alice", Role: models.RoleUser})
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
		require.NoError(t, err)

		_, err = run(t, b.RequireAuth, "Bearer "+tok, ok)
		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
		assert.Equal(t, "token expired", he.Message)
	})
}

func TestRequireRole(t *testing.T) {
	next := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	mw := RequireRole(models.RoleAdmin)

	withRole := func(role string) error {
		e := echo.New()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		if role != "" {
			c.Set(CtxRole, role)
		}
		return mw(next)(c)
	}

	assert.NoError(t, withRole(models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, statusOf(t, withRole(models.RoleUser)))
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, withRole("")))
}

func TestActorFrom_WithoutAuth(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_, err := ActorFrom(c)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}
