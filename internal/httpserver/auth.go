package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/wgdashboard/wg_dashboard/internal/logging"
	authmw "github.com/wgdashboard/wg_dashboard/internal/middleware/auth"
	"github.com/wgdashboard/wg_dashboard/internal/service"
	"github.com/wgdashboard/wg_dashboard/internal/tokens"
)

type AuthHTTP struct {
	Svc *service.SessionService
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		l.Warn("login_failed", "status", statusFor(err), "error", err)
		return httpError(err)
	}

	c.SetCookie(tokens.CreateCookie(tokens.RefreshCookieName, res.RefreshToken, "/", res.RefreshExp))
	l.Info("login_successful", "account_id", res.Account.ID)
	return c.JSON(http.StatusOK, res.AccessToken)
}

func (h *AuthHTTP) Signup(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_signup")

	var req service.SignupRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("signup_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	profile, err := h.Svc.Signup(ctx, req)
	if err != nil {
		l.Warn("signup_failed", "status", statusFor(err), "error", err)
		return httpError(err)
	}

	c.Response().Header().Set(echo.HeaderLocation, "/api/users/"+strconv.FormatUint(uint64(profile.ID), 10))
	return c.JSON(http.StatusCreated, profile)
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_passwd")

	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	actor, err := authmw.ActorFrom(c)
	if err != nil {
		return err
	}

	var req struct {
		ID       uint   `json:"id"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("passwd_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.ID != id {
		return echo.NewHTTPError(http.StatusBadRequest, "conflicting ids in url and body")
	}

	if err := h.Svc.ChangePassword(ctx, id, req.Password, actor); err != nil {
		l.Warn("passwd_failed", "status", statusFor(err), "error", err)
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	cookie, err := c.Cookie(tokens.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		l.Warn("refresh_failed", "status", 401, "reason", "missing refresh cookie")
		return echo.NewHTTPError(http.StatusUnauthorized, "not authorized")
	}

	res, err := h.Svc.Refresh(ctx, cookie.Value)
	if err != nil {
		l.Warn("refresh_failed", "status", statusFor(err), "error", err)
		return httpError(err)
	}

	c.SetCookie(tokens.CreateCookie(tokens.RefreshCookieName, res.RefreshToken, "/", res.RefreshExp))
	l.Info("refresh_success", "account_id", res.Account.ID)
	return c.JSON(http.StatusOK, res.AccessToken)
}

func (h *AuthHTTP) Revoke(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_revoke")

	cookie, err := c.Cookie(tokens.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authorized")
	}

	if err := h.Svc.Revoke(ctx, cookie.Value); err != nil {
		l.Warn("revoke_failed", "status", statusFor(err), "error", err)
		return httpError(err)
	}

	c.SetCookie(tokens.DeleteCookie(tokens.RefreshCookieName, "/"))
	l.Info("revoke_success")
	return c.NoContent(http.StatusNoContent)
}
