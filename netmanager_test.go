package netmanager

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/netmanager/config"
	"github.com/kbukum/netmanager/httpclient"
	"github.com/kbukum/netmanager/internal/upstream"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
name: billing
environment: production
http:
  base_url: https://api.example.com
  timeout: 5s
  upload_mode: raw
  request_id_header: X-Request-ID
  headers:
    X-Client: billing
  proxy:
    https_proxy: http://proxy.internal:3128
`)

	s, err := Load("billing", config.WithConfigFile(path))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "billing" || s.Environment != "production" {
		t.Errorf("unexpected service config %+v", s.ServiceConfig)
	}
	if s.HTTP.BaseURL != "https://api.example.com" {
		t.Errorf("expected base url, got %q", s.HTTP.BaseURL)
	}
	if s.HTTP.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", s.HTTP.Timeout)
	}
	if s.HTTP.UploadMode != httpclient.UploadRaw {
		t.Errorf("expected raw upload mode, got %q", s.HTTP.UploadMode)
	}
	if s.HTTP.Proxy == nil || s.HTTP.Proxy.HTTPSProxy != "http://proxy.internal:3128" {
		t.Errorf("expected proxy config, got %+v", s.HTTP.Proxy)
	}
	// viper lowercases keys; http.Header canonicalizes them again
	if len(s.HTTP.Headers) != 1 {
		t.Errorf("expected one header, got %v", s.HTTP.Headers)
	}
}

func TestLoad_Defaults(t *testing.T) {
	s, err := Load("defaults", config.WithConfigFile(filepath.Join(t.TempDir(), "missing.yml")))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "defaults" {
		t.Errorf("expected service name from argument, got %q", s.Name)
	}
	if s.HTTP.Timeout != 60*time.Second {
		t.Errorf("expected 60s default timeout, got %v", s.HTTP.Timeout)
	}
	if s.HTTP.UploadMode != httpclient.UploadMultipart {
		t.Errorf("expected multipart default, got %q", s.HTTP.UploadMode)
	}
	if s.Telemetry.Enabled {
		t.Error("expected telemetry disabled by default")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
name: svc
http:
  base_url: https://file.example.com
`)
	t.Setenv("NETMANAGER_HTTP_BASE_URL", "https://env.example.com")
	t.Setenv("NETMANAGER_HTTP_TIMEOUT", "2s")

	s, err := Load("svc", config.WithConfigFile(path))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.HTTP.BaseURL != "https://env.example.com" {
		t.Errorf("expected env base url, got %q", s.HTTP.BaseURL)
	}
	if s.HTTP.Timeout != 2*time.Second {
		t.Errorf("expected env timeout, got %v", s.HTTP.Timeout)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, `
name: svc
http:
  upload_mode: carrier-pigeon
`)
	if _, err := Load("svc", config.WithConfigFile(path)); err == nil {
		t.Fatal("expected validation error")
	} else if !strings.Contains(err.Error(), "upload_mode") {
		t.Errorf("expected upload_mode in error, got %v", err)
	}
}

func TestSettings_Validate(t *testing.T) {
	s := Settings{}
	s.Name = "svc"
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.Telemetry.SampleRate = 2
	if err := s.Validate(); err == nil {
		t.Error("expected error for sample rate above 1")
	}
}

func TestNew_BuildsWorkingClient(t *testing.T) {
	srv := upstream.New()
	defer srv.Close()

	s := Settings{}
	s.Name = "svc"
	s.Logging.Writer = io.Discard
	s.HTTP.BaseURL = srv.URL

	m, err := New(context.Background(), s)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Shutdown(context.Background())

	out := m.Client().Do(context.Background(), httpclient.RequestSpec{URL: "/echo"})
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if m.Settings().HTTP.Timeout != 60*time.Second {
		t.Errorf("expected defaults applied, got %v", m.Settings().HTTP.Timeout)
	}
}

func TestNew_InvalidSettings(t *testing.T) {
	if _, err := New(context.Background(), Settings{}); err == nil {
		t.Fatal("expected error for missing service name")
	}
}

func TestNew_WithTelemetry(t *testing.T) {
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	srv := upstream.New()
	defer srv.Close()

	s := Settings{}
	s.Name = "svc"
	s.Logging.Writer = io.Discard
	s.HTTP.BaseURL = srv.URL
	s.Telemetry = TelemetryConfig{
		Enabled:  true,
		Endpoint: strings.TrimPrefix(collector.URL, "http://"),
		Insecure: true,
	}

	ctx := context.Background()
	m, err := New(ctx, s)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if out := m.Client().Do(ctx, httpclient.RequestSpec{URL: "/echo"}); out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestOpen(t *testing.T) {
	srv := upstream.New()
	defer srv.Close()

	path := writeConfig(t, "name: svc\nlogging:\n  level: error\n")
	t.Setenv("NETMANAGER_HTTP_BASE_URL", srv.URL)

	m, err := Open(context.Background(), "svc", config.WithConfigFile(path))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Shutdown(context.Background())

	if m.Client().Config().BaseURL != srv.URL {
		t.Errorf("expected base url from env, got %q", m.Client().Config().BaseURL)
	}
}
