package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/hippodash/reconcile"
)

// jsonText accepts string, number, bool or null JSON values and normalizes to string.
type jsonText string

func (t *jsonText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = jsonText(s)
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*t = jsonText(fmt.Sprint(b))
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err == nil {
		*t = jsonText(n.String())
		return nil
	}

	return fmt.Errorf("expected string, number, bool, or null")
}

type syncRequest struct {
	Date   jsonText `json:"date"`
	Venue  jsonText `json:"venue"`
	Create jsonText `json:"create"`
}

// parseFlag reads the boolean-ish tokens the dashboard sends. Empty means false.
func parseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no", "off", "non":
		return false, nil
	case "1", "true", "yes", "on", "oui":
		return true, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// firstNonEmpty returns the first argument that is not blank, trimmed.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Sync runs one reconciliation pass for the requested date and returns its
// report. Parameters come from the query string or a JSON body; the body
// wins when both are given.
func (h *Handler) Sync(c echo.Context) error {
	if h.syncer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "sync is not configured")
	}

	var req syncRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	date := firstNonEmpty(string(req.Date), c.QueryParam("date"))
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing date param")
	}
	day, err := parseDate(date)
	if err != nil {
		return err
	}
	create, err := parseFlag(firstNonEmpty(string(req.Create), c.QueryParam("create")))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	opts := reconcile.Options{
		Date:       day,
		Venue:      firstNonEmpty(string(req.Venue), c.QueryParam("venue"), h.defaultVenue),
		AutoCreate: create,
	}

	rep, err := h.syncer.Run(c.Request().Context(), opts)
	if err != nil {
		if rep == nil {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		return c.JSON(http.StatusBadGateway, rep)
	}
	return c.JSON(http.StatusOK, rep)
}
