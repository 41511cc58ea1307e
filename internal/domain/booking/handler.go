package booking

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hotelops/ota-reconciliation/internal/middleware"
)

// Handler exposes the bookings table over HTTP
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates the booking handler
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type listRequest struct {
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	Text       map[string]string    `json:"text"`
	In         map[string][]string  `json:"in"`
	DateRanges map[string]DateRange `json:"date_ranges"`
}

// List returns one page of bookings. Filters arrive in the body because the
// grid sends per-column filter maps that do not fit query parameters well.
func (h *Handler) List(c echo.Context) error {
	var req listRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	filter := ListFilter{Text: req.Text, In: req.In, DateRanges: req.DateRanges}
	bookings, total, err := h.svc.List(c.Request().Context(), filter, req.Page, req.PageSize)
	if err != nil {
		h.logger.Error("failed to list bookings", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list bookings")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"bookings": bookings,
		"total":    total,
	})
}

// Get returns one booking
func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.Get(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "booking not found")
	}
	if err != nil {
		h.logger.Error("failed to get booking", "booking_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get booking")
	}
	return c.JSON(http.StatusOK, b)
}

// Create inserts a manually added booking row
func (h *Handler) Create(c echo.Context) error {
	var b Booking
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), &b); err != nil {
		h.logger.Error("failed to create booking", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create booking")
	}
	return c.JSON(http.StatusCreated, b)
}

// Update rewrites a whole booking row
func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var b Booking
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b.ID = id

	err = h.svc.UpdateRow(c.Request().Context(), &b, middleware.ActorFromContext(c))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "booking not found")
	}
	if err != nil {
		h.logger.Error("failed to update booking", "booking_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update booking")
	}
	return c.JSON(http.StatusOK, b)
}

type cellsRequest struct {
	Cells map[string]*string `json:"cells"`
}

// UpdateCells applies per-cell edits to one row
func (h *Handler) UpdateCells(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req cellsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Cells) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no cells to update")
	}

	b, err := h.svc.UpdateCells(c.Request().Context(), id, req.Cells, middleware.ActorFromContext(c))
	switch {
	case errors.Is(err, ErrColumnNotEditable):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "booking not found")
	case err != nil:
		h.logger.Error("failed to update cells", "booking_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update cells")
	}
	return c.JSON(http.StatusOK, b)
}

// Delete removes one booking row
func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	err = h.svc.Delete(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "booking not found")
	}
	if err != nil {
		h.logger.Error("failed to delete booking", "booking_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete booking")
	}
	return c.NoContent(http.StatusNoContent)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}
	return id, nil
}
