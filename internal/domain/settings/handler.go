package settings

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lims/lims/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Every signed-in user prints documents, so the letterhead is readable
	// without a specific permission.
	api.GET("/settings/company", h.GetCompany)

	write := api.Group("", auth.RequirePermission(auth.PermSettings))
	write.PUT("/settings/company", h.UpdateCompany)
	write.PUT("/settings/deletion-password", h.SetDeletionPassword)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalid), errors.Is(err, ErrPasswordTooShort):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrWrongPassword):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrPasswordNotSet):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) GetCompany(c echo.Context) error {
	info, err := h.svc.Company(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, info)
}

func (h *Handler) UpdateCompany(c echo.Context) error {
	var info CompanyInfo
	if err := c.Bind(&info); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateCompany(c.Request().Context(), &info); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, info)
}

type deletionPasswordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) SetDeletionPassword(c echo.Context) error {
	var req deletionPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetDeletionPassword(c.Request().Context(), req.Password); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
