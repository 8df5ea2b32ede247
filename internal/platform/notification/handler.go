package notification

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lims/lims/pkg/pagination"
)

// Handler serves the feed to any authenticated user.
type Handler struct {
	feed *Feed
}

func NewHandler(feed *Feed) *Handler {
	return &Handler{feed: feed}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/notifications")
	g.GET("", h.List)
	g.GET("/unread-count", h.UnreadCount)
	g.POST("/read", h.MarkAllRead)
	g.DELETE("", h.DeleteAll)
}

func (h *Handler) List(c echo.Context) error {
	entries, err := h.feed.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.Respond(entries, pagination.FromContext(c)))
}

func (h *Handler) UnreadCount(c echo.Context) error {
	n, err := h.feed.UnreadCount(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"unread": n})
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	n, err := h.feed.MarkAllRead(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"updated": n})
}

func (h *Handler) DeleteAll(c echo.Context) error {
	if _, err := h.feed.DeleteAll(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
