package upload

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hotelops/ota-reconciliation/internal/domain/upload/parser"
	"github.com/hotelops/ota-reconciliation/internal/middleware"
)

// Handler exposes the import pipeline and upload management over HTTP
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates the upload handler
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// StartImport accepts a multipart workbook upload. Without a sheet_name it
// answers with the sheet list when the workbook has more than one sheet;
// otherwise it runs the pipeline up to either a summary or a pending
// duplicate decision.
func (h *Handler) StartImport(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to open uploaded file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read uploaded file")
	}

	sheetName := c.FormValue("sheet_name")
	if sheetName == "" {
		names, err := h.svc.SheetNames(data)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "not a readable workbook")
		}
		if len(names) != 1 {
			return c.JSON(http.StatusOK, map[string]any{"sheets": names})
		}
		sheetName = names[0]
	}

	keepFile, _ := strconv.ParseBool(c.FormValue("keep_file"))
	outcome, err := h.svc.StartImport(c.Request().Context(), StartImportRequest{
		FileName:  fileHeader.Filename,
		FileBytes: data,
		SheetName: sheetName,
		KeepFile:  keepFile,
		Actor:     middleware.ActorFromContext(c),
	})
	if err != nil {
		var tooLarge *parser.SheetTooLargeError
		if errors.As(err, &tooLarge) {
			return c.JSON(http.StatusUnprocessableEntity, map[string]any{
				"error": tooLarge.Error(),
				"rows":  tooLarge.Rows,
				"limit": tooLarge.Limit,
			})
		}
		h.logger.Error("import failed", "file", fileHeader.Filename, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, outcome)
}

type commitRequest struct {
	Proceed bool `json:"proceed"`
}

// Commit resolves a pending duplicate decision
func (h *Handler) Commit(c echo.Context) error {
	var req commitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	summary, err := h.svc.CommitImport(c.Request().Context(), c.Param("id"), req.Proceed)
	switch {
	case errors.Is(err, ErrImportNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "pending import not found")
	case errors.Is(err, ErrCancelled):
		return c.JSON(http.StatusOK, map[string]string{"status": "stopped, nothing saved"})
	case err != nil:
		h.logger.Error("import commit failed", "import_id", c.Param("id"), "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"summary": summary})
}

// Cancel raises the cooperative cancellation flag of a pending import
func (h *Handler) Cancel(c echo.Context) error {
	if err := h.svc.CancelImport(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "pending import not found")
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "cancellation requested"})
}

// Discard drops a pending import without importing anything
func (h *Handler) Discard(c echo.Context) error {
	if err := h.svc.DiscardImport(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "pending import not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// ListUploads returns one page of upload batches
func (h *Handler) ListUploads(c echo.Context) error {
	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", 20)

	uploads, total, err := h.svc.ListUploads(c.Request().Context(), page, pageSize)
	if err != nil {
		h.logger.Error("failed to list uploads", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list uploads")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"uploads": uploads,
		"total":   total,
		"page":    page,
	})
}

// DeleteUpload removes a batch and all bookings it created
func (h *Handler) DeleteUpload(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid upload id")
	}

	err = h.svc.DeleteUpload(c.Request().Context(), id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return echo.NewHTTPError(http.StatusNotFound, "upload not found")
	case err != nil:
		h.logger.Error("failed to delete upload", "upload_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete upload")
	}
	return c.NoContent(http.StatusNoContent)
}

// FileURL returns a short-lived URL for a batch's retained original file
func (h *Handler) FileURL(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid upload id")
	}

	url, err := h.svc.FileURL(c.Request().Context(), id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return echo.NewHTTPError(http.StatusNotFound, "upload not found")
	case errors.Is(err, ErrNoStoredFile):
		return echo.NewHTTPError(http.StatusNotFound, "no stored file for this upload")
	case err != nil:
		h.logger.Error("failed to presign file url", "upload_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate file url")
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

func intQuery(c echo.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
