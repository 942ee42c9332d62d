package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Venues returns the canonical venues races may be recorded at.
func (h *Handler) Venues(c echo.Context) error {
	return c.JSON(http.StatusOK, h.venues.Names())
}

// Dates returns all distinct race dates, optionally filtered by venue.
func (h *Handler) Dates(c echo.Context) error {
	venue := strings.TrimSpace(c.QueryParam("venue"))
	if venue != "" {
		canonical, ok := h.venues.Canonical(venue)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown venue")
		}
		venue = canonical
	}

	dates, err := h.store.Dates(c.Request().Context(), venue)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, dates)
}
