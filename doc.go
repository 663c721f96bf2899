// Package netmanager builds a configured JSON HTTP client from files and
// environment variables.
//
// Each program owns its client explicitly:
//
//	m, err := netmanager.Open(ctx, "my-service")
//	if err != nil { ... }
//	defer m.Shutdown(ctx)
//
//	out := m.Client().Do(ctx, httpclient.RequestSpec{URL: "/status"})
//
// Configuration is read from config.yml and .env (see package config), with
// NETMANAGER_* environment variables taking precedence:
//
//	NETMANAGER_HTTP_BASE_URL=https://api.example.com
//	NETMANAGER_HTTP_TIMEOUT=30s
//	NETMANAGER_TELEMETRY_ENABLED=true
package netmanager
