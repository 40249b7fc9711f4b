// Package mcpserver exposes the weather tools over the Model Context Protocol.
package mcpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nwsmcp/weather-mcp/internal/telemetry"
)

// Tool names.
const (
	ToolGetAlerts   = "get_alerts"
	ToolGetForecast = "get_forecast"
)

// DefaultName is the server name advertised to clients.
const DefaultName = "weather"

const tracerName = "github.com/nwsmcp/weather-mcp/internal/mcpserver"

// Tools answers the tool calls. *weather.Service implements it.
type Tools interface {
	GetAlerts(ctx context.Context, state string) (string, error)
	GetForecast(ctx context.Context, latitude, longitude float64) (string, error)
}

// GetAlertsInput is the get_alerts argument object.
type GetAlertsInput struct {
	State string `json:"state" jsonschema:"Two-letter US state code (e.g. CA, NY)"`
}

// GetForecastInput is the get_forecast argument object.
type GetForecastInput struct {
	Latitude  float64 `json:"latitude" jsonschema:"Latitude of the location"`
	Longitude float64 `json:"longitude" jsonschema:"Longitude of the location"`
}

// Config holds configuration for the MCP server.
type Config struct {
	// Name is the advertised server name (optional, defaults to DefaultName).
	Name string

	// Version is the advertised server version.
	Version string

	// Tools handles the tool calls.
	Tools Tools

	// Metrics records tool calls (optional).
	Metrics *telemetry.ToolMetrics

	// Logger for tool calls.
	Logger zerolog.Logger
}

// Server is the weather MCP server. One Server can back any number of
// sessions.
type Server struct {
	mcp     *mcp.Server
	tools   Tools
	metrics *telemetry.ToolMetrics
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// New creates a server with get_alerts and get_forecast registered.
func New(cfg Config) *Server {
	name := cfg.Name
	if name == "" {
		name = DefaultName
	}

	s := &Server{
		mcp:     mcp.NewServer(&mcp.Implementation{Name: name, Version: cfg.Version}, nil),
		tools:   cfg.Tools,
		metrics: cfg.Metrics,
		tracer:  otel.Tracer(tracerName),
		logger:  cfg.Logger,
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolGetAlerts,
		Description: "Get weather alerts for a US state.",
	}, s.getAlerts)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolGetForecast,
		Description: "Get weather forecast for a location.",
	}, s.getForecast)

	return s
}

// Run serves a single session over stdin/stdout until the client
// disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().Msg("serving MCP over stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// Connect starts a session on an arbitrary transport.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}

// HTTPHandler serves the same server over the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)
}

func (s *Server) getAlerts(ctx context.Context, _ *mcp.CallToolRequest, in GetAlertsInput) (*mcp.CallToolResult, any, error) {
	return s.call(ctx, ToolGetAlerts, []attribute.KeyValue{
		attribute.String("weather.state", in.State),
	}, func(ctx context.Context) (string, error) {
		return s.tools.GetAlerts(ctx, in.State)
	})
}

func (s *Server) getForecast(ctx context.Context, _ *mcp.CallToolRequest, in GetForecastInput) (*mcp.CallToolResult, any, error) {
	return s.call(ctx, ToolGetForecast, []attribute.KeyValue{
		attribute.Float64("weather.latitude", in.Latitude),
		attribute.Float64("weather.longitude", in.Longitude),
	}, func(ctx context.Context) (string, error) {
		return s.tools.GetForecast(ctx, in.Latitude, in.Longitude)
	})
}

// call runs one tool invocation with a span, metrics and an access log line.
// Errors are handed back to the SDK, which reports them as tool errors.
func (s *Server) call(ctx context.Context, tool string, attrs []attribute.KeyValue, fn func(context.Context) (string, error)) (*mcp.CallToolResult, any, error) {
	callID := uuid.New().String()

	ctx, span := s.tracer.Start(ctx, "mcp.tool "+tool,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(append(attrs,
			attribute.String("mcp.tool.name", tool),
			attribute.String("mcp.call.id", callID),
		)...),
	)
	defer span.End()

	start := time.Now()
	text, err := fn(ctx)
	duration := time.Since(start)

	s.metrics.RecordCall(ctx, tool, duration, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error().
			Err(err).
			Str("tool", tool).
			Str("call_id", callID).
			Dur("duration", duration).
			Msg("tool call failed")
		return nil, nil, err
	}

	s.logger.Info().
		Str("tool", tool).
		Str("call_id", callID).
		Dur("duration", duration).
		Int("bytes", len(text)).
		Msg("tool call completed")

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}
