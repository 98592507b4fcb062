package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wgdashboard/wg_dashboard/internal/logging"
	authmw "github.com/wgdashboard/wg_dashboard/internal/middleware/auth"
	"github.com/wgdashboard/wg_dashboard/internal/service"
)

type UsersHTTP struct {
	Svc *service.UserService
}

func (h *UsersHTTP) List(c echo.Context) error {
	items, err := h.Svc.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *UsersHTTP) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	actor, err := authmw.ActorFrom(c)
	if err != nil {
		return err
	}

	profile, err := h.Svc.Get(c.Request().Context(), id, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *UsersHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users_update")

	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	actor, err := authmw.ActorFrom(c)
	if err != nil {
		return err
	}

	var req service.ProfileUpdate
	if err := c.Bind(&req); err != nil {
		l.Warn("update_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if _, err := h.Svc.Update(ctx, id, req, actor); err != nil {
		l.Warn("update_failed", "status", statusFor(err), "error", err)
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UsersHTTP) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	actor, err := authmw.ActorFrom(c)
	if err != nil {
		return err
	}

	if err := h.Svc.Delete(c.Request().Context(), id, actor); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
