// Package config loads netmanager configuration from YAML files, .env files
// and environment variables using Viper.
//
// # Usage
//
//	var s Settings
//	err := config.LoadConfig("netmanager", &s, config.WithEnvPrefix("NETMANAGER"))
//
// Environment variables override file values. Underscores map to nesting, so
// NETMANAGER_HTTP_BASE_URL sets http.base_url when the NETMANAGER prefix is used.
package config
