package report

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lims/lims/internal/domain/billing"
	"github.com/lims/lims/internal/domain/patient"
	"github.com/lims/lims/internal/domain/result"
	"github.com/lims/lims/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequirePermission(auth.PermBilling, auth.PermRecords, auth.PermResults))
	read.GET("/invoices/:id/report", h.InvoiceReport)

	entry := api.Group("", auth.RequirePermission(auth.PermResults))
	entry.GET("/results/:id/form", h.EntryForm)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, billing.ErrNotFound), errors.Is(err, patient.ErrNotFound), errors.Is(err, result.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) InvoiceReport(c echo.Context) error {
	doc, err := h.svc.InvoiceReport(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) EntryForm(c echo.Context) error {
	form, err := h.svc.EntryForm(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, form)
}
