package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hotelops/ota-reconciliation/internal/middleware"
)

// RegisterRoutes wires every handler into the echo instance
func (d *Dependencies) RegisterRoutes(e *echo.Echo) {
	e.HideBanner = true
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogStatus: true, LogURI: true, LogMethod: true, LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			d.Logger.Info("request",
				"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(middleware.RateLimit(
		float64(d.Config.Server.RateLimitPerSecond), d.Config.Server.RateLimitBurst))

	e.GET("/healthz", d.health)
	if d.Config.Observability.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	v1 := e.Group("/v1", middleware.JWT(d.Config.Auth.JWTSecret))

	// Import pipeline
	v1.POST("/imports", d.UploadHandler.StartImport)
	v1.POST("/imports/:id/commit", d.UploadHandler.Commit)
	v1.POST("/imports/:id/cancel", d.UploadHandler.Cancel)
	v1.DELETE("/imports/:id", d.UploadHandler.Discard)

	// Upload batches
	v1.GET("/uploads", d.UploadHandler.ListUploads)
	v1.DELETE("/uploads/:id", d.UploadHandler.DeleteUpload)
	v1.GET("/uploads/:id/file-url", d.UploadHandler.FileURL)

	// Bookings table
	v1.POST("/bookings/search", d.BookingHandler.List)
	v1.POST("/bookings", d.BookingHandler.Create)
	v1.GET("/bookings/:id", d.BookingHandler.Get)
	v1.PATCH("/bookings/:id", d.BookingHandler.Update)
	v1.PATCH("/bookings/:id/cells", d.BookingHandler.UpdateCells)
	v1.DELETE("/bookings/:id", d.BookingHandler.Delete)

	// Edit history
	v1.GET("/edits", d.HistoryHandler.List)
	v1.POST("/edits/:id/undo", d.HistoryHandler.Undo)

	// Dashboard
	v1.GET("/dashboard/summary", d.DashboardHandler.Summary)
}

// health reports liveness plus database reachability
func (d *Dependencies) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := d.DB.Pool.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"db":     err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
