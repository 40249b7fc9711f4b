// Package weather implements the get_alerts and get_forecast tools on top of
// the NWS API.
package weather

import (
	"context"
	"errors"

	"github.com/nwsmcp/weather-mcp/internal/weather/nws"
)

// User-facing messages returned when upstream data is unavailable.
const (
	MsgAlertsUnavailable   = "No active alerts found or unable to fetch data."
	MsgNoActiveAlerts      = "No active alerts found for the specified state."
	MsgForecastUnavailable = "Unable to fetch forecast data."
)

// Separator joins formatted alert and forecast blocks.
const Separator = "\n---\n"

// MaxForecastPeriods is how many forecast periods get_forecast reports.
const MaxForecastPeriods = 5

// ErrMalformedResponse is wrapped by every error raised for a fetched
// document that lacks a field the tools rely on.
var ErrMalformedResponse = errors.New("malformed NWS response")

// Placeholders for missing alert fields.
const (
	unknownPlaceholder        = "Unknown"
	noDescriptionPlaceholder  = "No description available"
	noInstructionsPlaceholder = "No specific instructions provided"
)

// Provider is the NWS access the tools need. *nws.Client implements it.
type Provider interface {
	ActiveAlerts(ctx context.Context, state string) nws.Result[nws.AlertCollection]
	Point(ctx context.Context, latitude, longitude float64) nws.Result[nws.Point]
	Forecast(ctx context.Context, forecastURL string) nws.Result[nws.Forecast]
}
