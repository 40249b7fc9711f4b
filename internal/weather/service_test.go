package weather_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwsmcp/weather-mcp/internal/provider/resilience"
	"github.com/nwsmcp/weather-mcp/internal/weather"
	"github.com/nwsmcp/weather-mcp/internal/weather/nws"
)

// fakeNWS serves canned bodies per path. A nil body yields a 500.
type fakeNWS struct {
	server *httptest.Server
	bodies map[string]interface{}
	hits   atomic.Int32
}

func newFakeNWS(t *testing.T) *fakeNWS {
	t.Helper()
	f := &fakeNWS{bodies: make(map[string]interface{})}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		body, ok := f.bodies[r.URL.Path]
		if !ok || body == nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		if raw, isRaw := body.(string); isRaw {
			_, _ = w.Write([]byte(raw))
			return
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeNWS) service() *weather.Service {
	client := nws.NewClient(nws.ClientConfig{
		BaseURL:    f.server.URL,
		HTTPClient: resilience.NewClient(resilience.DefaultClientConfig("test")),
		Logger:     zerolog.Nop(),
	})
	return weather.NewService(weather.ServiceConfig{
		Provider: client,
		Logger:   zerolog.Nop(),
	})
}

func alertFeature(event string) map[string]interface{} {
	return map[string]interface{}{
		"type": "Feature",
		"properties": map[string]interface{}{
			"event":       event,
			"areaDesc":    event + " area",
			"severity":    "Moderate",
			"description": event + " description",
			"instruction": event + " instruction",
		},
	}
}

func forecastPeriods(n int) []map[string]interface{} {
	periods := make([]map[string]interface{}, 0, n)
	for i := 1; i <= n; i++ {
		periods = append(periods, map[string]interface{}{
			"number":           i,
			"name":             fmt.Sprintf("P%d", i),
			"temperature":      60 + i,
			"temperatureUnit":  "F",
			"windSpeed":        fmt.Sprintf("%d mph", i),
			"windDirection":    "NW",
			"detailedForecast": fmt.Sprintf("Forecast text %d.", i),
		})
	}
	return periods
}

func TestGetAlerts_FetchFailure(t *testing.T) {
	f := newFakeNWS(t)

	out, err := f.service().GetAlerts(context.Background(), "CA")
	require.NoError(t, err)
	assert.Equal(t, weather.MsgAlertsUnavailable, out)
}

func TestGetAlerts_MissingFeatures(t *testing.T) {
	f := newFakeNWS(t)
	f.bodies["/alerts/active/area/CA"] = map[string]interface{}{"type": "FeatureCollection"}

	out, err := f.service().GetAlerts(context.Background(), "CA")
	require.NoError(t, err)
	assert.Equal(t, weather.MsgAlertsUnavailable, out)
}

func TestGetAlerts_EmptyFeatures(t *testing.T) {
	f := newFakeNWS(t)
	f.bodies["/alerts/active/area/ZZ"] = map[string]interface{}{"features": []interface{}{}}

	out, err := f.service().GetAlerts(context.Background(), "ZZ")
	require.NoError(t, err)
	assert.Equal(t, "No active alerts found for the specified state.", out)
}

func TestGetAlerts_NullFeatures(t *testing.T) {
	f := newFakeNWS(t)
	f.bodies["/alerts/active/area/CA"] = `{"features": null}`

	out, err := f.service().GetAlerts(context.Background(), "CA")
	require.NoError(t, err)
	assert.Equal(t, weather.MsgNoActiveAlerts, out)
}

func TestGetAlerts_NullDocument(t *testing.T) {
	f := newFakeNWS(t)
	f.bodies["/alerts/active/area/CA"] = `null`

	out, err := f.service().GetAlerts(context.Background(), "CA")
	require.NoError(t, err)
	assert.Equal(t, weather.MsgAlertsUnavailable, out)
}

func TestGetAlerts_JoinsFeaturesInOrder(t *testing.T) {
	f := newFakeNWS(t)
	f.bodies["/alerts/active/area/TX"] = map[string]interface{}{
		"features": []interface{}{
			alertFeature("Flood Warning"),
			alertFeature("Heat Advisory"),
			alertFeature("Wind Advisory"),
		},
	}

	out, err := f.service().GetAlerts(context.Background(), "TX")
	require.NoError(t, err)

	blocks := strings.Split(out, weather.Separator)
	require.Len(t, blocks, 3)
	assert.Contains(t, blocks[0], "Event: Flood Warning")
	assert.Contains(t, blocks[1], "Event: Heat Advisory")
	assert.Contains(t, blocks[2], "Event: Wind Advisory")
	assert.Contains(t, blocks[2], "Instructions: Wind Advisory instruction")
}

func TestGetAlerts_MissingFieldPlaceholders(t *testing.T) {
	f := newFakeNWS(t)
	f.bodies["/alerts/active/area/AK"] = `{"features": [{"properties": {"event": "Special Weather Statement", "instruction": null}}]}`

	out, err := f.service().GetAlerts(context.Background(), "AK")
	require.NoError(t, err)
	assert.Contains(t, out, "Event: Special Weather Statement")
	assert.Contains(t, out, "Area: Unknown")
	assert.Contains(t, out, "Instructions: No specific instructions provided")
}

func TestGetAlerts_FeatureWithoutPropertiesIsError(t *testing.T) {
	f := newFakeNWS(t)
	f.bodies["/alerts/active/area/CA"] = `{"features": [{"type": "Feature"}]}`

	_, err := f.service().GetAlerts(context.Background(), "CA")
	assert.ErrorIs(t, err, weather.ErrMalformedResponse)
}

func TestGetForecast_PointsFailure(t *testing.T) {
	f := newFakeNWS(t)

	out, err := f.service().GetForecast(context.Background(), 39.7456, -97.0892)
	require.NoError(t, err)
	assert.Equal(t, weather.MsgForecastUnavailable, out)
	assert.Equal(t, int32(1), f.hits.Load(), "forecast fetch must not run after points failure")
}

func TestGetForecast_ForecastFailure(t *testing.T) {
	f := newFakeNWS(t)
	f.bodies["/points/39.7456,-97.0892"] = map[string]interface{}{
		"properties": map[string]interface{}{"forecast": f.server.URL + "/gridpoints/TOP/31,80/forecast"},
	}

	out, err := f.service().GetForecast(context.Background(), 39.7456, -97.0892)
	require.NoError(t, err)
	assert.Equal(t, weather.MsgForecastUnavailable, out)
	assert.Equal(t, int32(2), f.hits.Load())
}

func TestGetAlerts_OpenCircuitSkipsUpstream(t *testing.T) {
	f := newFakeNWS(t)

	cb := resilience.DefaultCircuitBreakerConfig("nws")
	cb.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 1 }
	client := nws.NewClient(nws.ClientConfig{
		BaseURL:    f.server.URL,
		HTTPClient: resilience.NewClient(resilience.ClientConfig{Name: "nws", CircuitBreaker: &cb}),
		Logger:     zerolog.Nop(),
	})
	svc := weather.NewService(weather.ServiceConfig{Provider: client, Logger: zerolog.Nop()})

	for i := 0; i < 3; i++ {
		out, err := svc.GetAlerts(context.Background(), "CA")
		require.NoError(t, err)
		assert.Equal(t, weather.MsgAlertsUnavailable, out)
	}
	assert.Equal(t, int32(1), f.hits.Load(), "open circuit must not reach NWS")
}

func TestGetForecast_EmptyDocumentsAreUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		points   string
		forecast string
		hits     int32
	}{
		{name: "points null", points: `null`, hits: 1},
		{name: "points empty object", points: `{}`, hits: 1},
		{name: "forecast null", points: `{"properties": {"forecast": "%s/forecast"}}`, forecast: `null`, hits: 2},
		{name: "forecast empty object", points: `{"properties": {"forecast": "%s/forecast"}}`, forecast: `{}`, hits: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeNWS(t)
			points := tt.points
			if strings.Contains(points, "%s") {
				points = fmt.Sprintf(points, f.server.URL)
			}
			f.bodies["/points/1,2"] = points
			if tt.forecast != "" {
				f.bodies["/forecast"] = tt.forecast
			}

			out, err := f.service().GetForecast(context.Background(), 1, 2)
			require.NoError(t, err)
			assert.Equal(t, weather.MsgForecastUnavailable, out)
			assert.Equal(t, tt.hits, f.hits.Load())
		})
	}
}

func TestGetForecast_FirstFivePeriods(t *testing.T) {
	f := newFakeNWS(t)
	f.bodies["/points/39.7456,-97.0892"] = map[string]interface{}{
		"properties": map[string]interface{}{"forecast": f.server.URL + "/forecast"},
	}
	f.bodies["/forecast"] = map[string]interface{}{
		"properties": map[string]interface{}{"periods": forecastPeriods(7)},
	}

	out, err := f.service().GetForecast(context.Background(), 39.7456, -97.0892)
	require.NoError(t, err)

	blocks := strings.Split(out, weather.Separator)
	require.Len(t, blocks, 5)
	for i, block := range blocks {
		n := i + 1
		assert.True(t, strings.HasPrefix(block, fmt.Sprintf("P%d:", n)), block)
		assert.Contains(t, block, fmt.Sprintf("Temperature: %d°F", 60+n))
		assert.Contains(t, block, fmt.Sprintf("Wind: %d mph NW", n))
		assert.Contains(t, block, fmt.Sprintf("Forecast: Forecast text %d.", n))
	}
	assert.NotContains(t, out, "P6")
	assert.NotContains(t, out, "P7")
}

func TestGetForecast_FewerPeriods(t *testing.T) {
	f := newFakeNWS(t)
	f.bodies["/points/40,-105"] = map[string]interface{}{
		"properties": map[string]interface{}{"forecast": f.server.URL + "/forecast"},
	}
	f.bodies["/forecast"] = map[string]interface{}{
		"properties": map[string]interface{}{"periods": forecastPeriods(2)},
	}

	out, err := f.service().GetForecast(context.Background(), 40, -105)
	require.NoError(t, err)
	assert.Len(t, strings.Split(out, weather.Separator), 2)
}

func TestGetForecast_MalformedDocumentsAreErrors(t *testing.T) {
	tests := []struct {
		name     string
		points   string
		forecast string
	}{
		{
			name:   "points without forecast url",
			points: `{"properties": {"gridId": "TOP"}}`,
		},
		{
			name:   "points without properties",
			points: `{"type": "Feature"}`,
		},
		{
			name:     "forecast without periods",
			points:   `{"properties": {"forecast": "%s/forecast"}}`,
			forecast: `{"properties": {"updated": "2024-01-01T00:00:00Z"}}`,
		},
		{
			name:     "period missing wind direction",
			points:   `{"properties": {"forecast": "%s/forecast"}}`,
			forecast: `{"properties": {"periods": [{"name": "Today", "temperature": 70, "temperatureUnit": "F", "windSpeed": "5 mph", "detailedForecast": "Sunny."}]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeNWS(t)
			points := tt.points
			if strings.Contains(points, "%s") {
				points = fmt.Sprintf(points, f.server.URL)
			}
			f.bodies["/points/1,2"] = points
			if tt.forecast != "" {
				f.bodies["/forecast"] = tt.forecast
			}

			_, err := f.service().GetForecast(context.Background(), 1, 2)
			assert.ErrorIs(t, err, weather.ErrMalformedResponse)
		})
	}
}
