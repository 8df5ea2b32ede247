package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lims/lims/internal/domain/template"
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
	g := api.Group("", auth.RequirePermission(auth.PermResults))
	g.GET("/results", h.ListResults)
	g.GET("/results/:id", h.GetResult)
	g.PUT("/results/:id", h.SaveResult)
	g.GET("/invoices/:id/results", h.ListInvoiceResults)
	g.PUT("/invoices/:id/results", h.SaveInvoiceResults)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidValue), errors.Is(err, ErrNotInInvoice):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// entryView pairs a result with the template its entry form is built from.
type entryView struct {
	*Result
	Template *template.Template `json:"template,omitempty"`
}

func (h *Handler) view(c echo.Context, r *Result) (entryView, error) {
	tpl, err := h.svc.TemplateFor(c.Request().Context(), r)
	if err != nil {
		return entryView{}, err
	}
	return entryView{Result: r, Template: tpl}, nil
}

func (h *Handler) ListResults(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pagination.FromContext(c)))
}

func (h *Handler) GetResult(c echo.Context) error {
	r, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	v, err := h.view(c, r)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

type saveRequest struct {
	Value json.RawMessage `json:"value"`
}

func decodeValue(raw json.RawMessage) (Value, error) {
	var v Value
	if len(raw) == 0 {
		return Value{}, fmt.Errorf("%w: value is required", ErrInvalidValue)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		if errors.Is(err, ErrInvalidValue) {
			return Value{}, err
		}
		return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return v, nil
}

func (h *Handler) SaveResult(c echo.Context) error {
	var req saveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := decodeValue(req.Value)
	if err != nil {
		return httpError(err)
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	r, err := h.svc.SaveValue(c.Request().Context(), c.Param("id"), v, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListInvoiceResults(c echo.Context) error {
	items, err := h.svc.ListByInvoice(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	views := make([]entryView, 0, len(items))
	for _, r := range items {
		v, err := h.view(c, r)
		if err != nil {
			return httpError(err)
		}
		views = append(views, v)
	}
	return c.JSON(http.StatusOK, views)
}

type saveInvoiceRequest struct {
	Values map[string]json.RawMessage `json:"values"`
}

func (h *Handler) SaveInvoiceResults(c echo.Context) error {
	var req saveInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	values := make(map[string]Value, len(req.Values))
	for id, raw := range req.Values {
		v, err := decodeValue(raw)
		if err != nil {
			return httpError(err)
		}
		values[id] = v
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	items, err := h.svc.SaveInvoice(c.Request().Context(), c.Param("id"), values, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}
