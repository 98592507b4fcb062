package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wgdashboard/wg_dashboard/internal/db"
	"github.com/wgdashboard/wg_dashboard/internal/events"
	"github.com/wgdashboard/wg_dashboard/internal/hash"
	authmw "github.com/wgdashboard/wg_dashboard/internal/middleware/auth"
	"github.com/wgdashboard/wg_dashboard/internal/models"
	"github.com/wgdashboard/wg_dashboard/internal/refresh"
	"github.com/wgdashboard/wg_dashboard/internal/repo"
	"github.com/wgdashboard/wg_dashboard/internal/service"
	"github.com/wgdashboard/wg_dashboard/internal/tokens"
)

type testServer struct {
	e        *echo.Echo
	codec    *tokens.Codec
	sessions *service.SessionService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gdb, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })

	r := repo.New(gdb)
	codec := tokens.NewCodec(tokens.CodecConfig{Key: []byte("http-test-secret-http-test-secret")})
	sessions := service.NewSessionService(r, hash.New(bcrypt.MinCost, 4), codec, refresh.NewStore(r, 0), events.Noop{}, service.BootstrapSettings{
		Enabled:  true,
		Username: "admin",
		Password: "admin",
		Name:     "Development Admin",
	})
	require.NoError(t, sessions.Bootstrap(context.Background()))

	sqlDB, err := gdb.DB()
	require.NoError(t, err)

	e := echo.New()
	Register(e, &Deps{
		AuthHandler:  &AuthHTTP{Svc: sessions},
		UsersHandler: &UsersHTTP{Svc: &service.UserService{Repo: r}},
		PeersHandler: &PeersHTTP{Svc: &service.PeerService{Repo: r}},
		Bearer:       authmw.NewBearer(codec),
		DB:           sqlDB,
	})
	return &testServer{e: e, codec: codec, sessions: sessions}
}

type call struct {
	method string
	path   string
	body   string
	bearer string
	cookie *http.Cookie
}

func (s *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if c.body != "" {
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(c.method, c.path, nil)
	}
	if c.bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+c.bearer)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == tokens.RefreshCookieName {
			return ck
		}
	}
	t.Fatalf("no %s cookie in response", tokens.RefreshCookieName)
	return nil
}

func bodyToken(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var tok string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	require.NotEmpty(t, tok)
	return tok
}

func (s *testServer) login(t *testing.T, username, password string) (string, *http.Cookie) {
	t.Helper()
	rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return bodyToken(t, rec), refreshCookie(t, rec)
}

func (s *testServer) signup(t *testing.T, username, password string) models.AccountProfile {
	t.Helper()
	rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/signup", body: fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p models.AccountProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestAuthFlow_EndToEnd(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodPost, path: "/api/auth/signup", body: `{"username":"alice","password":"pw1","name":"Alice"}`})
	require.Equal(t, http.StatusCreated, rec.Code)
	var profile models.AccountProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, models.RoleUser, profile.Role)
	assert.Equal(t, fmt.Sprintf("/api/users/%d", profile.ID), rec.Header().Get(echo.HeaderLocation))
	assert.NotContains(t, rec.Body.String(), "password")

	access, cookie := s.login(t, "alice", "pw1")
	claims, err := s.codec.Decode(access)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, models.RoleUser, claims.Role)

	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: `{"username":"alice","password":"wrong"}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	wrongBody := rec.Body.String()
	rec = s.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: `{"username":"nobody","password":"pw1"}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, wrongBody, rec.Body.String())

	rec = s.do(t, call{method: http.MethodPost, path: "/api/auth/refresh", cookie: cookie})
	require.Equal(t, http.StatusOK, rec.Code)
	newAccess := bodyToken(t, rec)
	_, err = s.codec.Decode(newAccess)
	require.NoError(t, err)
	rotated := refreshCookie(t, rec)
	assert.NotEqual(t, cookie.Value, rotated.Value)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/auth/refresh", cookie: cookie})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, call{method: http.MethodDelete, path: "/api/auth/revoke", cookie: rotated})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	cleared := refreshCookie(t, rec)
	assert.Empty(t, cleared.Value)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/auth/refresh", cookie: rotated})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(t, call{method: http.MethodDelete, path: "/api/auth/revoke", cookie: rotated})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_BadInput(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice", "pw1")

	cases := []struct {
		name string
		c    call
		want int
	}{
		{"login missing password", call{method: http.MethodPost, path: "/api/auth/login", body: `{"username":"alice"}`}, http.StatusBadRequest},
		{"login malformed body", call{method: http.MethodPost, path: "/api/auth/login", body: `{"username":`}, http.StatusBadRequest},
		{"signup duplicate", call{method: http.MethodPost, path: "/api/auth/signup", body: `{"username":"alice","password":"x"}`}, http.StatusBadRequest},
		{"signup missing username", call{method: http.MethodPost, path: "/api/auth/signup", body: `{"password":"x"}`}, http.StatusBadRequest},
		{"refresh without cookie", call{method: http.MethodPost, path: "/api/auth/refresh"}, http.StatusUnauthorized},
		{"revoke without cookie", call{method: http.MethodDelete, path: "/api/auth/revoke"}, http.StatusUnauthorized},
		{"refresh with garbage", call{method: http.MethodPost, path: "/api/auth/refresh", cookie: &http.Cookie{Name: tokens.RefreshCookieName, Value: "garbage"}}, http.StatusUnauthorized},
		{"passwd without bearer", call{method: http.MethodPatch, path: "/api/auth/passwd/1", body: `{"id":1,"password":"x"}`}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, tc.c)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestChangePassword_HTTP(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice", "pw1")
	bob := s.signup(t, "bob", "pw1")
	aliceTok, _ := s.login(t, "alice", "pw1")
	adminTok, _ := s.login(t, "admin", "admin")

	path := fmt.Sprintf("/api/auth/passwd/%d", alice.ID)

	rec := s.do(t, call{method: http.MethodPatch, path: path, bearer: aliceTok, body: fmt.Sprintf(`{"id":%d,"password":"x"}`, bob.ID)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, call{method: http.MethodPatch, path: fmt.Sprintf("/api/auth/passwd/%d", bob.ID), bearer: aliceTok, body: fmt.Sprintf(`{"id":%d,"password":"x"}`, bob.ID)})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, call{method: http.MethodPatch, path: "/api/auth/passwd/9999", bearer: adminTok, body: `{"id":9999,"password":"x"}`})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, call{method: http.MethodPatch, path: path, bearer: aliceTok, body: fmt.Sprintf(`{"id":%d,"password":""}`, alice.ID)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, call{method: http.MethodPatch, path: path, bearer: aliceTok, body: fmt.Sprintf(`{"id":%d,"password":"pw2"}`, alice.ID)})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	s.login(t, "alice", "pw2")
}

func TestUsers_HTTP(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice", "pw1")
	bob := s.signup(t, "bob", "pw1")
	aliceTok, _ := s.login(t, "alice", "pw1")
	adminTok, _ := s.login(t, "admin", "admin")

	rec := s.do(t, call{method: http.MethodGet, path: "/api/users", bearer: aliceTok})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, call{method: http.MethodGet, path: "/api/users", bearer: adminTok})
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.AccountProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 3)

	rec = s.do(t, call{method: http.MethodGet, path: fmt.Sprintf("/api/users/%d", bob.ID), bearer: aliceTok})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, call{method: http.MethodGet, path: fmt.Sprintf("/api/users/%d", alice.ID), bearer: aliceTok})
	assert.Equal(t, http.StatusOK, rec.Code)

	self := fmt.Sprintf("/api/users/%d", alice.ID)
	rec = s.do(t, call{method: http.MethodPut, path: self, bearer: aliceTok, body: fmt.Sprintf(`{"id":%d,"username":"alice","role":"admin"}`, alice.ID)})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, call{method: http.MethodPut, path: self, bearer: aliceTok, body: fmt.Sprintf(`{"id":%d,"username":"alicia","role":"user"}`, alice.ID)})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, call{method: http.MethodDelete, path: fmt.Sprintf("/api/users/%d", bob.ID), bearer: aliceTok})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, call{method: http.MethodDelete, path: fmt.Sprintf("/api/users/%d", bob.ID), bearer: adminTok})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/api/users/abc", bearer: adminTok})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnonymousRoleIsRejectedOnSignedInRoutes(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice", "pw1")
	anon, _, err := s.codec.Issue(tokens.ClaimsFor(&models.Account{ID: alice.ID, Username: "alice", Role: models.RoleAnonymous}))
	require.NoError(t, err)

	for _, c := range []call{
		{method: http.MethodGet, path: fmt.Sprintf("/api/users/%d", alice.ID)},
		{method: http.MethodPut, path: fmt.Sprintf("/api/users/%d", alice.ID), body: fmt.Sprintf(`{"id":%d,"username":"alice","role":"user"}`, alice.ID)},
		{method: http.MethodPatch, path: fmt.Sprintf("/api/auth/passwd/%d", alice.ID), body: fmt.Sprintf(`{"id":%d,"password":"pw2"}`, alice.ID)},
		{method: http.MethodPost, path: "/api/peers", body: `{"publicKey":"pk","allowedIPs":"10.0.0.2/32"}`},
	} {
		c.bearer = anon
		rec := s.do(t, c)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", c.method, c.path)
	}
	s.login(t, "alice", "pw1")
}

func TestPeers_HTTP(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice", "pw1")
	bob := s.signup(t, "bob", "pw1")
	aliceTok, _ := s.login(t, "alice", "pw1")
	bobTok, _ := s.login(t, "bob", "pw1")

	rec := s.do(t, call{method: http.MethodPost, path: "/api/peers", bearer: aliceTok,
		body: fmt.Sprintf(`{"publicKey":"k1","allowedIPs":"10.0.0.2/32","deviceType":"Laptop","ownerId":%d}`, alice.ID)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var peer models.PeerProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &peer))
	assert.Equal(t, "alice", peer.OwnerUsername)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/peers", bearer: bobTok,
		body: fmt.Sprintf(`{"publicKey":"k2","allowedIPs":"10.0.0.3/32","ownerId":%d}`, alice.ID)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	peerPath := fmt.Sprintf("/api/peers/%d", peer.ID)
	rec = s.do(t, call{method: http.MethodGet, path: peerPath, bearer: bobTok})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, call{method: http.MethodGet, path: peerPath, bearer: aliceTok})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: fmt.Sprintf("/api/peers/owner/%d", alice.ID), bearer: aliceTok})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, call{method: http.MethodGet, path: fmt.Sprintf("/api/peers/owner/%d", bob.ID), bearer: bobTok})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, call{method: http.MethodGet, path: "/api/peers/owner/username/alice", bearer: aliceTok})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, call{method: http.MethodGet, path: "/api/peers", bearer: aliceTok})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, call{method: http.MethodPut, path: peerPath, bearer: aliceTok,
		body: fmt.Sprintf(`{"id":%d,"publicKey":"k1b","allowedIPs":"10.0.0.2/32","ownerId":%d}`, peer.ID, alice.ID)})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, call{method: http.MethodDelete, path: peerPath, bearer: bobTok})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, call{method: http.MethodDelete, path: peerPath, bearer: aliceTok})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, s.do(t, call{method: http.MethodGet, path: "/health/live"}).Code)
	assert.Equal(t, http.StatusOK, s.do(t, call{method: http.MethodGet, path: "/health/ready"}).Code)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: x", service.ErrBadRequest), http.StatusBadRequest},
		{service.ErrIncorrectCredentials, http.StatusBadRequest},
		{fmt.Errorf("%w: x", service.ErrNotAuthorized), http.StatusUnauthorized},
		{service.ErrForbiddenRole, http.StatusForbidden},
		{fmt.Errorf("%w: x", service.ErrNotFound), http.StatusNotFound},
		{service.ErrInternal, http.StatusInternalServerError},
		{fmt.Errorf("unexpected"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}

	he := httpError(fmt.Errorf("%w: db exploded", service.ErrInternal))
	assert.Equal(t, "internal server error", he.Message)
}
