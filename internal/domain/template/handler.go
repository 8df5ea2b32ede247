package template

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

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
	read := api.Group("", auth.RequirePermission(auth.PermTemplates, auth.PermResults, auth.PermServices))
	read.GET("/templates", h.ListTemplates)
	read.GET("/templates/:id", h.GetTemplate)

	write := api.Group("", auth.RequirePermission(auth.PermTemplates))
	write.POST("/templates", h.CreateTemplate)
	write.PUT("/templates/:id", h.ReplaceTemplate)
	write.DELETE("/templates/:id", h.DeleteTemplate)

	write.POST("/template-edits", h.BeginEdit)
	write.GET("/template-edits/:sid", h.GetEdit)
	write.PATCH("/template-edits/:sid", h.RenameEdit)
	write.POST("/template-edits/:sid/fields", h.AddField)
	write.PATCH("/template-edits/:sid/fields", h.UpdateField)
	write.POST("/template-edits/:sid/fields/remove", h.RemoveField)
	write.POST("/template-edits/:sid/fields/move", h.MoveField)
	write.POST("/template-edits/:sid/commit", h.CommitEdit)
	write.DELETE("/template-edits/:sid", h.DiscardEdit)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidPath), errors.Is(err, ErrNotGroup),
		errors.Is(err, ErrDuplicateFieldID), errors.Is(err, ErrInvalidField),
		errors.Is(err, ErrInvalidTemplate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// -- Templates --

func (h *Handler) ListTemplates(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pagination.FromContext(c)))
}

func (h *Handler) GetTemplate(c echo.Context) error {
	t, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) CreateTemplate(c echo.Context) error {
	var t Template
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ReplaceTemplate(c echo.Context) error {
	var t Template
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.ID = c.Param("id")
	if err := h.svc.Replace(c.Request().Context(), &t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTemplate(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Edit sessions --

type beginRequest struct {
	TemplateID string `json:"template_id"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type addFieldRequest struct {
	ParentPath Path  `json:"parent_path"`
	Field      Field `json:"field"`
}

type updateFieldRequest struct {
	Path  Path       `json:"path"`
	Patch FieldPatch `json:"patch"`
}

type pathRequest struct {
	Path Path `json:"path"`
	To   int  `json:"to"`
}

func (h *Handler) BeginEdit(c echo.Context) error {
	var req beginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	sess, err := h.svc.Begin(c.Request().Context(), req.TemplateID, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *Handler) GetEdit(c echo.Context) error {
	sess, err := h.svc.Session(c.Param("sid"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) RenameEdit(c echo.Context) error {
	var req renameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.Rename(c.Param("sid"), req.Name)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) AddField(c echo.Context) error {
	var req addFieldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.AddField(c.Param("sid"), req.ParentPath, req.Field)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) UpdateField(c echo.Context) error {
	var req updateFieldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.UpdateField(c.Param("sid"), req.Path, req.Patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) RemoveField(c echo.Context) error {
	var req pathRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.RemoveField(c.Param("sid"), req.Path)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) MoveField(c echo.Context) error {
	var req pathRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.MoveField(c.Param("sid"), req.Path, req.To)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) CommitEdit(c echo.Context) error {
	t, err := h.svc.Commit(c.Request().Context(), c.Param("sid"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DiscardEdit(c echo.Context) error {
	if err := h.svc.Discard(c.Param("sid")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
