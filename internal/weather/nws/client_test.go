package nws_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nwsmcp/weather-mcp/internal/provider/resilience"
	"github.com/nwsmcp/weather-mcp/internal/weather/nws"
)

func newTestClient(baseURL string, log zerolog.Logger) *nws.Client {
	return nws.NewClient(nws.ClientConfig{
		BaseURL:    baseURL,
		HTTPClient: resilience.NewClient(resilience.DefaultClientConfig("test")),
		Logger:     log,
	})
}

func TestClient_SendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/alerts/active/area/CA", r.URL.Path)
		assert.Equal(t, nws.DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "application/geo+json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"features": []}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, zerolog.Nop())

	alerts, ok := client.ActiveAlerts(context.Background(), "CA").Get()
	require.True(t, ok)
	assert.True(t, alerts.HasFeatures)
	assert.Empty(t, alerts.Features)
}

func TestClient_CustomUserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "my-weather-bot/2.0 (ops@example.com)", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := nws.NewClient(nws.ClientConfig{
		BaseURL:   server.URL,
		UserAgent: "my-weather-bot/2.0 (ops@example.com)",
	})

	assert.True(t, client.ActiveAlerts(context.Background(), "NY").Present())
}

func TestClient_URLs(t *testing.T) {
	client := newTestClient("https://api.weather.gov/", zerolog.Nop())

	assert.Equal(t, "https://api.weather.gov/alerts/active/area/CA", client.AlertsURL("CA"))
	assert.Equal(t, "https://api.weather.gov/points/39.7456,-97.0892", client.PointsURL(39.7456, -97.0892))
	assert.Equal(t, "https://api.weather.gov/points/40,-105", client.PointsURL(40, -105))
}

func TestClient_FailuresCollapseToNone(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"title": "Not Found"}`))
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"features": [`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			var buf bytes.Buffer
			client := newTestClient(server.URL, zerolog.New(&buf))

			result := client.ActiveAlerts(context.Background(), "CA")
			assert.False(t, result.Present())

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "exactly one log line")
			assert.Equal(t, "warn", entry["level"])
			assert.Equal(t, "error fetching data from NWS API", entry["message"])
			assert.Equal(t, server.URL+"/alerts/active/area/CA", entry["url"])
			assert.NotEmpty(t, entry["error"])
		})
	}
}

func TestClient_NullBodyIsNone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("null\n"))
	}))
	defer server.Close()

	var buf bytes.Buffer
	client := newTestClient(server.URL, zerolog.New(&buf).Level(zerolog.InfoLevel))

	assert.False(t, client.Point(context.Background(), 1, 2).Present())
	assert.False(t, client.ActiveAlerts(context.Background(), "CA").Present())
	assert.Empty(t, buf.String(), "a null document is not a fetch failure")
}

func TestClient_NetworkErrorCollapsesToNone(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := newTestClient(url, zerolog.Nop())

	assert.False(t, client.Point(context.Background(), 1, 2).Present())
}

func TestClient_TimeoutCollapsesToNone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := nws.NewClient(nws.ClientConfig{
		BaseURL: server.URL,
		HTTPClient: resilience.NewClient(resilience.ClientConfig{
			Name:    "test-timeout",
			Timeout: 50 * time.Millisecond,
		}),
	})

	assert.False(t, client.ActiveAlerts(context.Background(), "CA").Present())
}

func TestClient_ForecastUsesAbsoluteURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gridpoints/TOP/31,80/forecast", r.URL.Path)
		_, _ = w.Write([]byte(`{"properties": {"periods": [
			{"name": "Tonight", "temperature": 48, "temperatureUnit": "F",
			 "windSpeed": "5 mph", "windDirection": "S", "detailedForecast": "Clear."}
		]}}`))
	}))
	defer server.Close()

	client := newTestClient("https://unused.invalid", zerolog.Nop())

	forecast, ok := client.Forecast(context.Background(), server.URL+"/gridpoints/TOP/31,80/forecast").Get()
	require.True(t, ok)
	require.NotNil(t, forecast.Properties)
	require.NotNil(t, forecast.Properties.Periods)

	periods := *forecast.Properties.Periods
	require.Len(t, periods, 1)
	assert.Equal(t, "Tonight", *periods[0].Name)
	assert.Equal(t, "48", periods[0].Temperature.String())
}

func TestClient_TracesFetch(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	}()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL, zerolog.Nop())
	_ = client.ActiveAlerts(context.Background(), "TX")

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "nws.fetch", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
