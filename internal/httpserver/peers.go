package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/wgdashboard/wg_dashboard/internal/logging"
	authmw "github.com/wgdashboard/wg_dashboard/internal/middleware/auth"
	"github.com/wgdashboard/wg_dashboard/internal/service"
)

type PeersHTTP struct {
	Svc *service.PeerService
}

func (h *PeersHTTP) List(c echo.Context) error {
	items, err := h.Svc.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *PeersHTTP) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	actor, err := authmw.ActorFrom(c)
	if err != nil {
		return err
	}

	p, err := h.Svc.Get(c.Request().Context(), id, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PeersHTTP) ListByOwner(c echo.Context) error {
	ownerID, err := paramID(c, "ownerId")
	if err != nil {
		return err
	}
	actor, err := authmw.ActorFrom(c)
	if err != nil {
		return err
	}

	items, err := h.Svc.ListByOwner(c.Request().Context(), ownerID, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *PeersHTTP) ListByOwnerUsername(c echo.Context) error {
	actor, err := authmw.ActorFrom(c)
	if err != nil {
		return err
	}

	items, err := h.Svc.ListByOwnerUsername(c.Request().Context(), c.Param("username"), actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *PeersHTTP) Add(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "peers_add")

	actor, err := authmw.ActorFrom(c)
	if err != nil {
		return err
	}
	var req service.PeerRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("add_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	p, err := h.Svc.Add(ctx, req, actor)
	if err != nil {
		l.Warn("add_failed", "status", statusFor(err), "error", err)
		return httpError(err)
	}

	c.Response().Header().Set(echo.HeaderLocation, "/api/peers/"+strconv.FormatUint(uint64(p.ID), 10))
	return c.JSON(http.StatusCreated, p)
}

func (h *PeersHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "peers_update")

	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	actor, err := authmw.ActorFrom(c)
	if err != nil {
		return err
	}
	var req service.PeerRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.Update(ctx, id, req, actor); err != nil {
		l.Warn("update_failed", "status", statusFor(err), "error", err)
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *PeersHTTP) Delete(c echo.Context) error {
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
