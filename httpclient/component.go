package httpclient

import (
	"context"
	"sync"

	"github.com/kbukum/netmanager/component"
)

// Component wraps a Client with lifecycle management.
// The client is created lazily in Start().
type Component struct {
	config Config
	opts   []Option

	mu     sync.RWMutex
	client *Client
}

// compile-time assertions
var _ component.Component = (*Component)(nil)
var _ component.Describable = (*Component)(nil)

// NewComponent creates a new HTTP client component.
func NewComponent(cfg Config, opts ...Option) *Component {
	return &Component{config: cfg, opts: opts}
}

// Name returns the component name.
func (c *Component) Name() string {
	if c.config.Name == "" {
		return defaultName
	}
	return c.config.Name
}

// Start builds the client.
func (c *Component) Start(_ context.Context) error {
	client, err := New(c.config, c.opts...)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

// Stop drops the client. In-flight calls finish on their own.
func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	c.client = nil
	c.mu.Unlock()
	return nil
}

// Health reports healthy once the client has been started.
func (c *Component) Health(_ context.Context) component.Health {
	if c.Client() == nil {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: "not started",
		}
	}
	return component.Health{
		Name:   c.Name(),
		Status: component.StatusHealthy,
	}
}

// Describe returns component description for the startup summary.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    c.Name(),
		Type:    "http-client",
		Details: c.config.BaseURL,
	}
}

// Client returns the underlying client, or nil before Start().
func (c *Component) Client() *Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}
