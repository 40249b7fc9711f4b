package nws

import "encoding/json"

// NWS GeoJSON response structures. Optional members are pointers so that a
// missing key can be told apart from a zero value.

// AlertCollection is the body of /alerts/active/area/{state}.
type AlertCollection struct {
	// Features is nil both when the key is absent and when it is empty;
	// HasFeatures distinguishes the two.
	Features    []AlertFeature
	HasFeatures bool
}

// UnmarshalJSON records whether the features key was present at all.
func (c *AlertCollection) UnmarshalJSON(data []byte) error {
	var raw struct {
		Features json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Features == nil {
		return nil
	}

	c.HasFeatures = true
	return json.Unmarshal(raw.Features, &c.Features)
}

// AlertFeature is a single active alert.
type AlertFeature struct {
	Properties *AlertProperties `json:"properties"`
}

// AlertProperties holds the alert fields shown to the user.
type AlertProperties struct {
	Event       *string `json:"event"`
	AreaDesc    *string `json:"areaDesc"`
	Severity    *string `json:"severity"`
	Description *string `json:"description"`
	Instruction *string `json:"instruction"`
}

// Point is the body of /points/{lat},{lon}: it maps a coordinate to the
// forecast resource for its grid cell.
type Point struct {
	Properties *struct {
		Forecast *string `json:"forecast"`
	} `json:"properties"`

	empty bool
}

// Empty reports whether the document was an object without members.
func (p Point) Empty() bool { return p.empty }

// UnmarshalJSON decodes the point and records an empty document.
func (p *Point) UnmarshalJSON(data []byte) error {
	type plain Point
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	empty, err := isEmptyObject(data)
	if err != nil {
		return err
	}
	*p = Point(v)
	p.empty = empty
	return nil
}

// Forecast is the body of a gridpoint forecast resource.
type Forecast struct {
	Properties *struct {
		Periods *[]ForecastPeriod `json:"periods"`
	} `json:"properties"`

	empty bool
}

// Empty reports whether the document was an object without members.
func (f Forecast) Empty() bool { return f.empty }

// UnmarshalJSON decodes the forecast and records an empty document.
func (f *Forecast) UnmarshalJSON(data []byte) error {
	type plain Forecast
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	empty, err := isEmptyObject(data)
	if err != nil {
		return err
	}
	*f = Forecast(v)
	f.empty = empty
	return nil
}

func isEmptyObject(data []byte) (bool, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return false, err
	}
	return len(members) == 0, nil
}

// ForecastPeriod is one time-segmented forecast entry.
type ForecastPeriod struct {
	Name             *string      `json:"name"`
	Temperature      *json.Number `json:"temperature"`
	TemperatureUnit  *string      `json:"temperatureUnit"`
	WindSpeed        *string      `json:"windSpeed"`
	WindDirection    *string      `json:"windDirection"`
	DetailedForecast *string      `json:"detailedForecast"`
}
