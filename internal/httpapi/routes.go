package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"mediakeep/internal/config"
)

func (a *API) registerRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"ok":        true,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	v1 := e.Group("/api/v1")
	v1Auth := v1.Group("")
	v1Auth.Use(a.auth.Middleware)
	v1Auth.POST("/media", a.handler.Upload)
	v1Auth.GET("/whoami", a.handler.Whoami)

	// With the local sink the returned URLs point back at this server.
	if a.cfg.StorageBackend == config.BackendLocal {
		e.Static("/media", a.cfg.MediaRoot)
	}

	internal := e.Group("/api/internal")
	internal.Use(a.auth.Middleware)
	internal.POST("/tokens", a.handler.CreateToken)
}
