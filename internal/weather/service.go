package weather

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Provider is the NWS data source.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service answers the weather tools. It holds no per-call state, so one
// Service serves concurrent calls.
type Service struct {
	provider Provider
	logger   zerolog.Logger
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}
}

// GetAlerts returns the active alerts for a state as text blocks joined by
// Separator. Fetch failures and empty results map to fixed messages; a
// feature without properties is an error.
func (s *Service) GetAlerts(ctx context.Context, state string) (string, error) {
	alerts, ok := s.provider.ActiveAlerts(ctx, state).Get()
	if !ok || !alerts.HasFeatures {
		return MsgAlertsUnavailable, nil
	}

	if len(alerts.Features) == 0 {
		return MsgNoActiveAlerts, nil
	}

	blocks := make([]string, 0, len(alerts.Features))
	for i, feature := range alerts.Features {
		if feature.Properties == nil {
			return "", fmt.Errorf("%w: alert feature %d has no properties", ErrMalformedResponse, i)
		}
		blocks = append(blocks, FormatAlert(*feature.Properties))
	}

	s.logger.Debug().
		Str("state", state).
		Int("alerts", len(blocks)).
		Msg("formatted active alerts")

	return strings.Join(blocks, Separator), nil
}

// GetForecast returns up to MaxForecastPeriods forecast periods for a
// coordinate. It needs two sequential fetches: the points lookup yields the
// forecast URL for the grid cell.
func (s *Service) GetForecast(ctx context.Context, latitude, longitude float64) (string, error) {
	point, ok := s.provider.Point(ctx, latitude, longitude).Get()
	if !ok || point.Empty() {
		return MsgForecastUnavailable, nil
	}

	if point.Properties == nil || point.Properties.Forecast == nil {
		return "", fmt.Errorf("%w: points response has no properties.forecast", ErrMalformedResponse)
	}
	forecastURL := *point.Properties.Forecast

	forecast, ok := s.provider.Forecast(ctx, forecastURL).Get()
	if !ok || forecast.Empty() {
		return MsgForecastUnavailable, nil
	}

	if forecast.Properties == nil || forecast.Properties.Periods == nil {
		return "", fmt.Errorf("%w: forecast response has no properties.periods", ErrMalformedResponse)
	}

	periods := *forecast.Properties.Periods
	if len(periods) > MaxForecastPeriods {
		periods = periods[:MaxForecastPeriods]
	}

	blocks := make([]string, 0, len(periods))
	for _, period := range periods {
		block, err := FormatPeriod(period)
		if err != nil {
			return "", err
		}
		blocks = append(blocks, block)
	}

	s.logger.Debug().
		Float64("latitude", latitude).
		Float64("longitude", longitude).
		Str("forecast_url", forecastURL).
		Int("periods", len(blocks)).
		Msg("formatted forecast")

	return strings.Join(blocks, Separator), nil
}
