package billing

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lims/lims/internal/domain/result"
	"github.com/lims/lims/internal/domain/settings"
	"github.com/lims/lims/internal/platform/auth"
	"github.com/lims/lims/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequirePermission(auth.PermBilling, auth.PermRecords, auth.PermResults))
	read.GET("/invoices", h.ListInvoices)
	read.GET("/invoices/worklist", h.Worklist)
	read.GET("/invoices/:id", h.GetInvoice)

	write := api.Group("", auth.RequirePermission(auth.PermBilling))
	write.POST("/invoices", h.CreateInvoice)
	write.POST("/invoices/:id/pay", h.MarkPaid)

	admin := api.Group("", auth.RequirePermission(auth.PermSettings))
	admin.POST("/records/purge", h.Purge)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalid), errors.Is(err, ErrNoServices),
		errors.Is(err, ErrPatientNotFound), errors.Is(err, ErrInvalidScope):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, settings.ErrWrongPassword):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, settings.ErrPasswordNotSet):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type createResponse struct {
	*Invoice
	Results []*result.Result `json:"results"`
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv, results, err := h.svc.CreateInvoice(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, createResponse{Invoice: inv, Results: results})
}

func (h *Handler) GetInvoice(c echo.Context) error {
	inv, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pagination.FromContext(c)))
}

func (h *Handler) MarkPaid(c echo.Context) error {
	inv, err := h.svc.MarkPaid(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) Worklist(c echo.Context) error {
	wl, err := h.svc.Worklist(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, wl)
}

type purgeRequest struct {
	Scope    PurgeScope `json:"scope"`
	Password string     `json:"password"`
}

func (h *Handler) Purge(c echo.Context) error {
	var req purgeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, err := h.svc.Purge(c.Request().Context(), req.Scope, req.Password)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"scope": req.Scope, "deleted": n})
}
