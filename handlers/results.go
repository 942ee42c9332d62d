package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/hippodash/models"
)

type resultRequest struct {
	Arrival  []int          `json:"arrival"`
	Rapports models.Payouts `json:"rapports"`
	Simple   models.Payouts `json:"simple"`
	Couple   models.Payouts `json:"couple"`
	Trio     models.Payouts `json:"trio"`
}

func orEmpty(p models.Payouts) models.Payouts {
	if p == nil {
		return models.Payouts{}
	}
	return p
}

func validPayouts(maps ...models.Payouts) bool {
	for _, m := range maps {
		for key, amount := range m {
			if key == "" || amount < 0 {
				return false
			}
		}
	}
	return true
}

// Results returns the results of every race on a date.
func (h *Handler) Results(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing date param")
	}
	day, err := parseDate(date)
	if err != nil {
		return err
	}

	results, err := h.store.ResultsByDate(c.Request().Context(), day)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, results)
}

// Result returns the result of one race.
func (h *Handler) Result(c echo.Context) error {
	res, err := h.store.FindResultByRaceID(c.Request().Context(), c.Param("raceID"))
	if err != nil {
		return storeError(err, "result")
	}
	return c.JSON(http.StatusOK, res)
}

// SaveResult creates or replaces the arrival and payouts of a race's result.
// This is the only path that writes payouts.
func (h *Handler) SaveResult(c echo.Context) error {
	var req resultRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	for _, n := range req.Arrival {
		if n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "arrival entries must be positive runner numbers")
		}
	}
	if !validPayouts(req.Rapports, req.Simple, req.Couple, req.Trio) {
		return echo.NewHTTPError(http.StatusBadRequest, "payouts need a combination key and a non-negative amount")
	}

	ctx := c.Request().Context()
	race, err := h.store.FindRaceByID(ctx, c.Param("raceID"))
	if err != nil {
		return storeError(err, "race")
	}

	arrival := req.Arrival
	if arrival == nil {
		arrival = []int{}
	}
	res := models.NewResult(race.ID, arrival, h.now())
	res.Rapports = orEmpty(req.Rapports)
	res.Simple = orEmpty(req.Simple)
	res.Couple = orEmpty(req.Couple)
	res.Trio = orEmpty(req.Trio)

	if err := h.store.SaveResult(ctx, res); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}
