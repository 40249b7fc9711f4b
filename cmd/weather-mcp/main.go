// Package main provides the entrypoint for the weather MCP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nwsmcp/weather-mcp/internal/api"
	"github.com/nwsmcp/weather-mcp/internal/api/middleware"
	"github.com/nwsmcp/weather-mcp/internal/auth"
	"github.com/nwsmcp/weather-mcp/internal/config"
	"github.com/nwsmcp/weather-mcp/internal/mcpserver"
	"github.com/nwsmcp/weather-mcp/internal/provider/resilience"
	"github.com/nwsmcp/weather-mcp/internal/telemetry"
	"github.com/nwsmcp/weather-mcp/internal/weather"
	"github.com/nwsmcp/weather-mcp/internal/weather/nws"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "weather-mcp"

func main() {
	configFile := flag.String("config", "", "path to a YAML config file")
	transport := flag.String("transport", "", "override the configured transport (stdio or http)")
	issueToken := flag.String("issue-token", "", "print a bearer token for the given subject and exit")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *transport != "" {
		cfg.Transport = *transport
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid transport: %v\n", err)
			os.Exit(1)
		}
	}

	if *issueToken != "" {
		if err := printToken(os.Stdout, cfg, *issueToken); err != nil {
			fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// stdout carries MCP frames on the stdio transport.
	log := cfg.NewLogger(os.Stderr).
		With().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("transport", cfg.Transport).
		Msg("starting weather MCP server")

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.App.Env,
		OTLPEndpoint:   cfg.OTel.Endpoint,
		Enabled:        cfg.OTel.Enabled,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTel.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTel.Endpoint).
			Msg("OpenTelemetry initialized")
	}

	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		return fmt.Errorf("initialize provider metrics: %w", err)
	}
	toolMetrics, err := telemetry.NewToolMetrics()
	if err != nil {
		return fmt.Errorf("initialize tool metrics: %w", err)
	}

	registry := resilience.NewRegistry()
	breaker := resilience.DefaultCircuitBreakerConfig(nws.ProviderName)
	breaker.OnStateChange = resilience.LogStateChanges(log)

	nwsClient := nws.NewClient(nws.ClientConfig{
		BaseURL:   cfg.NWS.BaseURL,
		UserAgent: cfg.NWS.UserAgent,
		HTTPClient: resilience.NewClient(resilience.ClientConfig{
			Name:           nws.ProviderName,
			Timeout:        cfg.NWS.Timeout,
			CircuitBreaker: &breaker,
			Registry:       registry,
		}),
		Metrics: providerMetrics,
		Logger:  log.With().Str("component", "nws").Logger(),
	})

	service := weather.NewService(weather.ServiceConfig{
		Provider: nwsClient,
		Logger:   log.With().Str("component", "weather").Logger(),
	})

	server := mcpserver.New(mcpserver.Config{
		Version: Version,
		Tools:   service,
		Metrics: toolMetrics,
		Logger:  log.With().Str("component", "mcp").Logger(),
	})

	if cfg.Transport == config.TransportHTTP {
		return serveHTTP(ctx, cfg, log, server, registry)
	}

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio session: %w", err)
	}
	return nil
}

func serveHTTP(ctx context.Context, cfg *config.Config, log zerolog.Logger, server *mcpserver.Server, registry *resilience.Registry) error {
	metrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("initialize http metrics: %w", err)
	}

	var jwtService *auth.JWTService
	if cfg.Auth.SigningKey != "" {
		jwtService = newJWTService(cfg)
		log.Info().Msg("bearer auth enabled")
	} else {
		log.Warn().Msg("no signing key configured - MCP endpoint is unauthenticated")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:    Version,
		BuildTime:  BuildTime,
		Logger:     log,
		Metrics:    metrics,
		Health:     registry,
		Tools:      []string{mcpserver.ToolGetAlerts, mcpserver.ToolGetForecast},
		MCPHandler: server.HTTPHandler(),
		JWT:        jwtService,
		RequireTLS: cfg.HTTP.RequireTLS,
	})

	// No WriteTimeout: MCP responses may be long-lived event streams.
	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("mcp_path", api.MCPPath).
			Msg("server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func newJWTService(cfg *config.Config) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.Auth.SigningKey,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		TTL:        cfg.Auth.TokenTTL,
	})
}

// printToken writes a bearer token for subject, signed with the configured key.
func printToken(w io.Writer, cfg *config.Config, subject string) error {
	if cfg.Auth.SigningKey == "" {
		return errors.New("auth.signingkey is not configured")
	}

	token, expiresAt, err := newJWTService(cfg).GenerateAccessToken(subject)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s\n# expires %s\n", token, expiresAt.UTC().Format(time.RFC3339))
	return err
}
