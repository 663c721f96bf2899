package netmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kbukum/netmanager/config"
	"github.com/kbukum/netmanager/httpclient"
	"github.com/kbukum/netmanager/logger"
	"github.com/kbukum/netmanager/observability"
	"github.com/kbukum/netmanager/version"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "NETMANAGER"

// Settings is the full configuration of a netmanager program.
type Settings struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	HTTP      httpclient.Config `yaml:"http" mapstructure:"http"`
	Telemetry TelemetryConfig   `yaml:"telemetry" mapstructure:"telemetry"`
}

// TelemetryConfig controls OTLP export of request spans and metrics.
type TelemetryConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (s *Settings) ApplyDefaults() {
	s.ServiceConfig.ApplyDefaults()
	s.HTTP.ApplyDefaults()
	if s.Telemetry.Endpoint == "" {
		s.Telemetry.Endpoint = "localhost:4318"
	}
	if s.Telemetry.SampleRate <= 0 {
		s.Telemetry.SampleRate = 1.0
	}
	if s.Telemetry.Interval <= 0 {
		s.Telemetry.Interval = 15 * time.Second
	}
}

// Validate checks every section.
func (s *Settings) Validate() error {
	if err := s.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := s.HTTP.Validate(); err != nil {
		return fmt.Errorf("config.http: %w", err)
	}
	if s.Telemetry.SampleRate > 1 {
		return fmt.Errorf("config.telemetry.sample_rate must be within (0, 1] (got: %v)", s.Telemetry.SampleRate)
	}
	return nil
}

// Load reads Settings for the named service. Options are passed to
// config.LoadConfig after the default NETMANAGER env prefix.
func Load(name string, opts ...config.LoaderOption) (*Settings, error) {
	s := &Settings{}
	opts = append([]config.LoaderOption{config.WithEnvPrefix(EnvPrefix)}, opts...)
	if err := config.LoadConfig(name, s, opts...); err != nil {
		return nil, err
	}
	if s.Name == "" {
		s.Name = name
	}
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Manager owns a configured client and the telemetry providers behind it.
type Manager struct {
	settings  Settings
	client    *httpclient.Client
	shutdowns []func(context.Context) error
}

// Open loads Settings for the named service and builds a Manager.
func Open(ctx context.Context, name string, opts ...config.LoaderOption) (*Manager, error) {
	s, err := Load(name, opts...)
	if err != nil {
		return nil, err
	}
	return New(ctx, *s)
}

// New initializes logging, optional telemetry and the HTTP client.
// Extra client options are applied after the ones derived from s.
func New(ctx context.Context, s Settings, opts ...httpclient.Option) (*Manager, error) {
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}

	logger.Init(s.Logging)
	log := logger.WithComponent("netmanager")

	m := &Manager{settings: s}
	var clientOpts []httpclient.Option

	if s.Telemetry.Enabled {
		metrics, err := m.initTelemetry(ctx)
		if err != nil {
			_ = m.Shutdown(ctx)
			return nil, err
		}
		clientOpts = append(clientOpts, httpclient.WithMetrics(metrics))
	}

	client, err := httpclient.New(s.HTTP, append(clientOpts, opts...)...)
	if err != nil {
		_ = m.Shutdown(ctx)
		return nil, fmt.Errorf("create http client: %w", err)
	}
	m.client = client

	log.Info("netmanager ready", logger.Fields(
		"service", s.Name,
		"version", version.Get().Short(),
		"base_url", s.HTTP.BaseURL,
		"telemetry", s.Telemetry.Enabled,
	))
	return m, nil
}

func (m *Manager) initTelemetry(ctx context.Context) (*observability.Metrics, error) {
	s := m.settings

	tp, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    s.Name,
		ServiceVersion: s.Version,
		Environment:    s.Environment,
		Endpoint:       s.Telemetry.Endpoint,
		Insecure:       s.Telemetry.Insecure,
		SampleRate:     s.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	m.shutdowns = append(m.shutdowns, tp.Shutdown)

	mp, err := observability.InitMeter(ctx, observability.MeterConfig{
		ServiceName:    s.Name,
		ServiceVersion: s.Version,
		Environment:    s.Environment,
		Endpoint:       s.Telemetry.Endpoint,
		Insecure:       s.Telemetry.Insecure,
		Interval:       s.Telemetry.Interval,
	})
	if err != nil {
		return nil, fmt.Errorf("init meter: %w", err)
	}
	m.shutdowns = append(m.shutdowns, mp.Shutdown)

	metrics, err := observability.NewMetrics(mp.Meter(s.Name))
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	return metrics, nil
}

// Client returns the configured HTTP client.
func (m *Manager) Client() *httpclient.Client {
	return m.client
}

// Settings returns the settings the Manager was built from.
func (m *Manager) Settings() Settings {
	return m.settings
}

// Shutdown flushes and stops telemetry providers, newest first.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(m.shutdowns) - 1; i >= 0; i-- {
		if err := m.shutdowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	m.shutdowns = nil
	return errors.Join(errs...)
}
