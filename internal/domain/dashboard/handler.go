package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the dashboard over HTTP
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates the dashboard handler
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Summary returns the aggregated dashboard payload. Set filters arrive as
// repeated query parameters, e.g. ?country=Singapore&country=Thailand;
// date_from and date_to bound created_at by day.
func (h *Handler) Summary(c echo.Context) error {
	filter := Filter{
		Countries:  c.QueryParams()["country"],
		Channels:   c.QueryParams()["channel"],
		Currencies: c.QueryParams()["currency"],
		Statuses:   c.QueryParams()["status"],
		DateFrom:   c.QueryParam("date_from"),
		DateTo:     c.QueryParam("date_to"),
	}

	summary, err := h.svc.Summary(c.Request().Context(), filter)
	if err != nil {
		h.logger.Error("failed to build dashboard summary", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to build dashboard summary")
	}
	return c.JSON(http.StatusOK, summary)
}
