package httpclient

import (
	"maps"
	"net/url"
	"time"

	"github.com/kbukum/netmanager/validation"
)

const (
	defaultName    = "http"
	defaultTimeout = 60 * time.Second
)

// UploadMode selects how upload payloads are put on the wire.
type UploadMode string

const (
	// UploadMultipart sends a multipart/form-data body with one file part.
	UploadMultipart UploadMode = "multipart"
	// UploadRaw sends the payload bytes as the request body.
	UploadRaw UploadMode = "raw"
)

// Config configures the HTTP client.
type Config struct {
	// Name identifies the client in logs, spans and metrics. Defaults to "http".
	Name string `yaml:"name" mapstructure:"name"`

	// BaseURL is prepended verbatim to every request URL.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout bounds each call end to end. Defaults to 60s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Headers are default headers applied to all requests.
	// Per-request headers with the same name win.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// UploadMode selects the upload body encoding. Defaults to multipart.
	UploadMode UploadMode `yaml:"upload_mode" mapstructure:"upload_mode"`

	// RequestIDHeader, when set, carries the per-call request ID.
	RequestIDHeader string `yaml:"request_id_header" mapstructure:"request_id_header"`

	// Proxy configures outbound proxying. Nil uses a direct connection.
	Proxy *ProxyConfig `yaml:"proxy" mapstructure:"proxy"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UploadMode == "" {
		c.UploadMode = UploadMultipart
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	v := validation.New()
	v.Custom(c.Timeout > 0, "timeout", "must be positive")
	v.OneOf("upload_mode", string(c.UploadMode), []string{string(UploadMultipart), string(UploadRaw)})
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		v.Custom(err == nil && u.Scheme != "" && u.Host != "", "base_url", "must be an absolute URL")
	}
	if c.Proxy != nil {
		v.Merge("proxy", c.Proxy.Validate())
	}
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// clone returns a copy that shares no mutable state with c.
func (c Config) clone() Config {
	c.Headers = maps.Clone(c.Headers)
	if c.Proxy != nil {
		p := *c.Proxy
		c.Proxy = &p
	}
	return c
}
