package history

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hotelops/ota-reconciliation/internal/middleware"
)

// Handler exposes the edit history over HTTP
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates the history handler
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List returns one page of edits, newest first
func (h *Handler) List(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	entries, total, err := h.svc.List(c.Request().Context(), page, pageSize)
	if err != nil {
		h.logger.Error("failed to list edits", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list edits")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"edits": entries,
		"total": total,
	})
}

// Undo reverts one edit
func (h *Handler) Undo(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid edit id")
	}

	entry, err := h.svc.Undo(c.Request().Context(), id, middleware.ActorFromContext(c))
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "edit entry not found")
	case errors.Is(err, ErrAlreadyUndone):
		return echo.NewHTTPError(http.StatusConflict, "edit already undone")
	case err != nil:
		h.logger.Error("failed to undo edit", "entry_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to undo edit")
	}
	return c.JSON(http.StatusOK, entry)
}
