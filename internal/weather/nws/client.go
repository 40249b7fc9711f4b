// Package nws fetches JSON documents from the National Weather Service API.
package nws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nwsmcp/weather-mcp/internal/provider/resilience"
	"github.com/nwsmcp/weather-mcp/internal/telemetry"
)

// API Docs: https://www.weather.gov/documentation/services-web-api
const (
	// ProviderName identifies this provider in logs, metrics and health.
	ProviderName = "nws"

	// DefaultBaseURL is the NWS API base URL.
	DefaultBaseURL = "https://api.weather.gov"

	// DefaultUserAgent identifies this application to NWS, which rejects
	// requests without a User-Agent.
	DefaultUserAgent = "weather-app/1.0"

	// DefaultTimeout bounds each request.
	DefaultTimeout = 3 * time.Second

	acceptGeoJSON = "application/geo+json"
	tracerName    = "github.com/nwsmcp/weather-mcp/internal/weather/nws"
)

var jsonNull = []byte("null")

// StatusError is a non-2xx response from NWS.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// ClientConfig holds configuration for the NWS client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to DefaultBaseURL).
	BaseURL string

	// UserAgent is sent with every request (optional, defaults to DefaultUserAgent).
	UserAgent string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, a breaker-guarded client with DefaultTimeout is created.
	HTTPClient *resilience.Client

	// Metrics records request outcomes (optional).
	Metrics *telemetry.ProviderMetrics

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an NWS API client. Safe for concurrent use.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *resilience.Client
	metrics    *telemetry.ProviderMetrics
	tracer     trace.Tracer
	logger     zerolog.Logger
}

// NewClient creates a new NWS client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: httpClient,
		metrics:    cfg.Metrics,
		tracer:     otel.Tracer(tracerName),
		logger:     cfg.Logger,
	}
}

// AlertsURL returns the active-alerts URL for a state. The state code is
// inserted verbatim; NWS rejects unknown codes itself.
func (c *Client) AlertsURL(state string) string {
	return c.baseURL + "/alerts/active/area/" + state
}

// PointsURL returns the points lookup URL for a coordinate.
func (c *Client) PointsURL(latitude, longitude float64) string {
	return fmt.Sprintf("%s/points/%s,%s", c.baseURL, formatCoordinate(latitude), formatCoordinate(longitude))
}

// ActiveAlerts fetches the active alerts for a state.
func (c *Client) ActiveAlerts(ctx context.Context, state string) Result[AlertCollection] {
	return Fetch[AlertCollection](ctx, c, c.AlertsURL(state))
}

// Point fetches the points lookup for a coordinate.
func (c *Client) Point(ctx context.Context, latitude, longitude float64) Result[Point] {
	return Fetch[Point](ctx, c, c.PointsURL(latitude, longitude))
}

// Forecast fetches a forecast resource by the absolute URL NWS handed out
// in a points lookup.
func (c *Client) Forecast(ctx context.Context, forecastURL string) Result[Forecast] {
	return Fetch[Forecast](ctx, c, forecastURL)
}

// Fetch GETs url and decodes the body into T. It never returns an error:
// any failure is logged and yields None. A 2xx body of JSON null also yields
// None, without a log line.
func Fetch[T any](ctx context.Context, c *Client, url string) Result[T] {
	var v T
	present, err := c.get(ctx, url, &v)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("url", url).
			Msg("error fetching data from NWS API")
		return None[T]()
	}
	if !present {
		c.logger.Debug().Str("url", url).Msg("NWS returned a null document")
		return None[T]()
	}
	return Some(v)
}

// get decodes the response body into out. present is false when the body
// is the JSON literal null.
func (c *Client) get(ctx context.Context, url string, out any) (present bool, err error) {
	ctx, span := c.tracer.Start(ctx, "nws.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodGet),
			attribute.String("url.full", url),
		),
	)
	start := time.Now()
	defer func() {
		c.metrics.RecordRequest(ProviderName, "fetch", time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", acceptGeoJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, &StatusError{StatusCode: resp.StatusCode}
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return false, fmt.Errorf("decoding response: %w", err)
	}
	if bytes.Equal(raw, jsonNull) {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decoding response: %w", err)
	}

	return true, nil
}

// formatCoordinate renders degrees in the shortest form that round-trips.
func formatCoordinate(deg float64) string {
	return strconv.FormatFloat(deg, 'f', -1, 64)
}
