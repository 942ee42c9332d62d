package handlers

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/hippodash/db"
	"github.com/padraicbc/hippodash/models"
	"github.com/padraicbc/hippodash/normalize"
)

type raceResponse struct {
	*models.Race
	Result *models.Result `json:"result,omitempty"`
}

// raceRequest is the body of POST and PUT /races. Date, venue and number
// identify the race and are only read on creation.
type raceRequest struct {
	Date         string                `json:"date"`
	Venue        string                `json:"venue"`
	Number       int                   `json:"number"`
	Time         *string               `json:"time"`
	Distance     *int                  `json:"distance"`
	Title        *string               `json:"title"`
	Purse        *float64              `json:"purse"`
	Currency     *string               `json:"currency"`
	Participants *[]models.Participant `json:"participants"`
	Temperature  *float64              `json:"temperature"`
}

// apply copies the mutable fields set in req onto race and returns the
// columns it touched.
func (req *raceRequest) apply(race *models.Race) ([]string, error) {
	var cols []string
	if req.Time != nil {
		t := strings.TrimSpace(*req.Time)
		if t != "" {
			if _, err := time.Parse("15:04", t); err != nil {
				return nil, echo.NewHTTPError(http.StatusBadRequest, "time must be HH:MM")
			}
		}
		race.Time = t
		cols = append(cols, "time")
	}
	if req.Distance != nil {
		if *req.Distance < 0 {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "distance must not be negative")
		}
		race.Distance = *req.Distance
		cols = append(cols, "distance")
	}
	if req.Title != nil {
		race.Title = strings.TrimSpace(*req.Title)
		cols = append(cols, "title")
	}
	if req.Purse != nil {
		if *req.Purse < 0 {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "purse must not be negative")
		}
		race.Purse = *req.Purse
		cols = append(cols, "purse")
	}
	if req.Currency != nil {
		race.Currency = strings.ToUpper(strings.TrimSpace(*req.Currency))
		cols = append(cols, "currency")
	}
	if req.Participants != nil {
		parts := make([]models.Participant, 0, len(*req.Participants))
		seen := make(map[int]bool)
		for _, p := range *req.Participants {
			if p.Number <= 0 || seen[p.Number] {
				return nil, echo.NewHTTPError(http.StatusBadRequest, "participant numbers must be positive and unique")
			}
			seen[p.Number] = true
			parts = append(parts, p)
		}
		sort.Slice(parts, func(i, j int) bool { return parts[i].Number < parts[j].Number })
		race.Participants = parts
		cols = append(cols, "participants")
	}
	if req.Temperature != nil {
		t := *req.Temperature
		race.Temperature = &t
		cols = append(cols, "temperature")
	}
	return cols, nil
}

// Races lists races, optionally filtered by date and venue.
func (h *Handler) Races(c echo.Context) error {
	var f db.RaceFilter
	if s := c.QueryParam("date"); s != "" {
		d, err := parseDate(s)
		if err != nil {
			return err
		}
		f.Date = d
	}
	if v := strings.TrimSpace(c.QueryParam("venue")); v != "" {
		canonical, ok := h.venues.Canonical(v)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown venue")
		}
		f.Venue = canonical
	}

	races, err := h.store.ListRaces(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, races)
}

// Race returns one race with its result, if it has one.
func (h *Handler) Race(c echo.Context) error {
	ctx := c.Request().Context()
	race, err := h.store.FindRaceByID(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "race")
	}

	resp := raceResponse{Race: race}
	res, err := h.store.FindResultByRaceID(ctx, race.ID)
	switch {
	case err == nil:
		resp.Result = res
	case !isNotFound(err):
		return storeError(err, "result")
	}
	return c.JSON(http.StatusOK, resp)
}

// CreateRace records a race by hand. Its ID is derived the same way the
// sync derives it, so a later sync finds it instead of duplicating it.
func (h *Handler) CreateRace(c echo.Context) error {
	var req raceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if strings.TrimSpace(req.Date) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	day, err := parseDate(strings.TrimSpace(req.Date))
	if err != nil {
		return err
	}
	venue, ok := h.venues.Canonical(req.Venue)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown venue")
	}
	if req.Number <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "number must be positive")
	}

	now := h.now()
	race := &models.Race{
		ID:           normalize.RaceID(day, venue, req.Number),
		Date:         day,
		Venue:        venue,
		Number:       req.Number,
		Currency:     h.currency,
		Participants: []models.Participant{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := req.apply(race); err != nil {
		return err
	}

	if err := h.store.CreateRace(c.Request().Context(), race); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "duplicate key value") {
			return echo.NewHTTPError(http.StatusConflict, "race already exists")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, race)
}

// UpdateRace edits the descriptive fields of a race.
func (h *Handler) UpdateRace(c echo.Context) error {
	var req raceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	race, err := h.store.FindRaceByID(ctx, c.Param("id"))
	if err != nil {
		return storeError(err, "race")
	}

	cols, err := req.apply(race)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return c.JSON(http.StatusOK, race)
	}

	race.UpdatedAt = h.now()
	if err := h.store.UpdateRace(ctx, race, append(cols, "updated_at")...); err != nil {
		return storeError(err, "race")
	}
	return c.JSON(http.StatusOK, race)
}

// DeleteRace removes a race and its result.
func (h *Handler) DeleteRace(c echo.Context) error {
	if err := h.store.DeleteRace(c.Request().Context(), c.Param("id")); err != nil {
		return storeError(err, "race")
	}
	return c.NoContent(http.StatusNoContent)
}
