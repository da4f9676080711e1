package notification

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the outbox for operational inspection. Messages carry
// patient contact details, so the caller supplies the guarding middleware at
// registration.
type Handler struct {
	dispatcher *Dispatcher
}

func NewHandler(d *Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

func (h *Handler) RegisterRoutes(g *echo.Group, guards ...echo.MiddlewareFunc) {
	out := g.Group("/notifications", guards...)
	out.GET("", h.List)
	out.GET("/stats", h.Stats)
	out.GET("/:id", h.Get)
	out.POST("/:id/retry", h.Retry)
}

func (h *Handler) Get(c echo.Context) error {
	m, err := h.dispatcher.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) List(c echo.Context) error {
	recipient := c.QueryParam("recipient")
	if recipient == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "recipient query parameter is required")
	}
	return c.JSON(http.StatusOK, h.dispatcher.ListByRecipient(recipient, 100))
}

func (h *Handler) Retry(c echo.Context) error {
	id := c.Param("id")
	if err := h.dispatcher.Retry(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	m, err := h.dispatcher.Get(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.dispatcher.Stats())
}
