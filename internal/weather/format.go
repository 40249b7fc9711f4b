package weather

import (
	"fmt"
	"strings"

	"github.com/nwsmcp/weather-mcp/internal/weather/nws"
)

// FormatAlert renders one alert. Missing properties fall back to placeholders.
func FormatAlert(props nws.AlertProperties) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", valueOr(props.Event, unknownPlaceholder))
	fmt.Fprintf(&b, "Area: %s\n", valueOr(props.AreaDesc, unknownPlaceholder))
	fmt.Fprintf(&b, "Severity: %s\n", valueOr(props.Severity, unknownPlaceholder))
	fmt.Fprintf(&b, "Description: %s\n", valueOr(props.Description, noDescriptionPlaceholder))
	fmt.Fprintf(&b, "Instructions: %s", valueOr(props.Instruction, noInstructionsPlaceholder))
	return b.String()
}

// FormatPeriod renders one forecast period. Unlike FormatAlert it has no
// fallbacks: a missing field is an error.
func FormatPeriod(p nws.ForecastPeriod) (string, error) {
	switch {
	case p.Name == nil:
		return "", missingField("name")
	case p.Temperature == nil:
		return "", missingField("temperature")
	case p.TemperatureUnit == nil:
		return "", missingField("temperatureUnit")
	case p.WindSpeed == nil:
		return "", missingField("windSpeed")
	case p.WindDirection == nil:
		return "", missingField("windDirection")
	case p.DetailedForecast == nil:
		return "", missingField("detailedForecast")
	}

	return fmt.Sprintf("%s:\nTemperature: %s°%s\nWind: %s %s\nForecast: %s",
		*p.Name,
		p.Temperature.String(), *p.TemperatureUnit,
		*p.WindSpeed, *p.WindDirection,
		*p.DetailedForecast,
	), nil
}

func valueOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func missingField(name string) error {
	return fmt.Errorf("%w: forecast period missing %q", ErrMalformedResponse, name)
}
