package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	authmw "github.com/wgdashboard/wg_dashboard/internal/middleware/auth"
	"github.com/wgdashboard/wg_dashboard/internal/models"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	AuthHandler  *AuthHTTP
	UsersHandler *UsersHTTP
	PeersHandler *PeersHTTP
	Bearer       *authmw.Bearer
	DB           Pinger
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.DB == nil {
			return c.NoContent(http.StatusOK)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.DB.PingContext(ctx); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})

	adminOnly := authmw.RequireRole(models.RoleAdmin)
	signedIn := authmw.RequireRole(models.RoleAdmin, models.RoleUser)

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/login", d.AuthHandler.Login)
	authGroup.POST("/signup", d.AuthHandler.Signup)
	authGroup.POST("/refresh", d.AuthHandler.Refresh)
	authGroup.DELETE("/revoke", d.AuthHandler.Revoke)
	authGroup.PATCH("/passwd/:id", d.AuthHandler.ChangePassword, d.Bearer.RequireAuth, signedIn)

	users := api.Group("/users", d.Bearer.RequireAuth, signedIn)
	users.GET("", d.UsersHandler.List, adminOnly)
	users.GET("/:id", d.UsersHandler.Get)
	users.PUT("/:id", d.UsersHandler.Update)
	users.DELETE("/:id", d.UsersHandler.Delete)

	peers := api.Group("/peers", d.Bearer.RequireAuth, signedIn)
	peers.GET("", d.PeersHandler.List, adminOnly)
	peers.POST("", d.PeersHandler.Add)
	peers.GET("/:id", d.PeersHandler.Get)
	peers.PUT("/:id", d.PeersHandler.Update)
	peers.DELETE("/:id", d.PeersHandler.Delete)
	peers.GET("/owner/:ownerId", d.PeersHandler.ListByOwner)
	peers.GET("/owner/username/:username", d.PeersHandler.ListByOwnerUsername)
}
