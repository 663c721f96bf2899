package httpclient

import (
	"net/http"
	"net/url"

	"golang.org/x/net/http/httpproxy"

	"github.com/kbukum/netmanager/validation"
)

// ProxyConfig selects the proxy used for outbound requests.
// Explicit fields override values taken from the environment.
type ProxyConfig struct {
	// HTTPProxy is used for http:// targets.
	HTTPProxy string `yaml:"http_proxy" mapstructure:"http_proxy"`
	// HTTPSProxy is used for https:// targets.
	HTTPSProxy string `yaml:"https_proxy" mapstructure:"https_proxy"`
	// NoProxy lists hosts that bypass the proxy, comma separated.
	NoProxy string `yaml:"no_proxy" mapstructure:"no_proxy"`
	// FromEnvironment starts from HTTP_PROXY, HTTPS_PROXY and NO_PROXY.
	FromEnvironment bool `yaml:"from_environment" mapstructure:"from_environment"`
}

// Validate checks that the proxy addresses parse.
func (p *ProxyConfig) Validate() error {
	v := validation.New()
	for field, raw := range map[string]string{"http_proxy": p.HTTPProxy, "https_proxy": p.HTTPSProxy} {
		if raw == "" {
			continue
		}
		_, err := url.Parse(raw)
		v.Custom(err == nil, field, "must be a valid URL")
	}
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// proxyFunc returns the transport proxy selector, or nil for a direct connection.
func (p *ProxyConfig) proxyFunc() func(*http.Request) (*url.URL, error) {
	if p == nil {
		return nil
	}

	cfg := &httpproxy.Config{}
	if p.FromEnvironment {
		cfg = httpproxy.FromEnvironment()
	}
	if p.HTTPProxy != "" {
		cfg.HTTPProxy = p.HTTPProxy
	}
	if p.HTTPSProxy != "" {
		cfg.HTTPSProxy = p.HTTPSProxy
	}
	if p.NoProxy != "" {
		cfg.NoProxy = p.NoProxy
	}

	fn := cfg.ProxyFunc()
	return func(r *http.Request) (*url.URL, error) {
		return fn(r.URL)
	}
}
