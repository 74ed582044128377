package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/701789262a/backend-dailychat/component"
	"github.com/701789262a/backend-dailychat/logger"
)

// ProviderFactory creates the Discovery and, when supported, Registry for a provider.
// Registry may be nil.
type ProviderFactory func(cfg Config, log *logger.Logger) (Discovery, Registry, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]ProviderFactory)
)

// RegisterProviderFactory is called from provider package init functions.
func RegisterProviderFactory(name string, f ProviderFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Component wraps a provider and implements component.Component. When
// registration is enabled the local service is announced on Start and
// withdrawn on Stop.
type Component struct {
	cfg       Config
	log       *logger.Logger
	discovery Discovery
	registry  Registry
	client    *Client
	serviceID string
}

// NewComponent creates a discovery Component for use with the component registry.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("discovery")}
}

var _ component.Component = (*Component)(nil)

func (c *Component) Name() string { return "discovery" }

// Client returns the caching client, or nil if not started.
func (c *Component) Client() *Client { return c.client }

// Start builds the provider and registers the local service if configured.
func (c *Component) Start(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("discovery config: %w", err)
	}

	factoriesMu.RLock()
	f, ok := factories[c.cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return fmt.Errorf("discovery provider %q not registered", c.cfg.Provider)
	}

	disc, reg, err := f(c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("discovery start: %w", err)
	}
	c.discovery = disc
	c.registry = reg
	c.client = NewClient(disc, c.cfg.CacheTTL, c.log)

	r := c.cfg.Registration
	if !r.Enabled || reg == nil {
		return nil
	}

	addr := r.ServiceAddress
	if addr == "" {
		if addr, err = outboundIP(); err != nil {
			return fmt.Errorf("discovery: resolve local address: %w", err)
		}
	}
	c.serviceID = r.ServiceID
	if c.serviceID == "" {
		c.serviceID = fmt.Sprintf("%s-%s-%d", r.ServiceName, addr, r.ServicePort)
	}
	svc := &ServiceInfo{ID: c.serviceID, Name: r.ServiceName, Address: addr, Port: r.ServicePort, Tags: r.Tags}
	if err := reg.Register(ctx, svc); err != nil {
		return fmt.Errorf("discovery: register self: %w", err)
	}
	return nil
}

// Stop deregisters the local service and releases resources.
func (c *Component) Stop(ctx context.Context) error {
	if c.registry != nil && c.serviceID != "" {
		if err := c.registry.Deregister(ctx, c.serviceID); err != nil {
			c.log.Warn("failed to deregister on stop", map[string]interface{}{logger.FieldError: err.Error()})
		}
	}
	if c.discovery != nil {
		return c.discovery.Close()
	}
	return nil
}

func (c *Component) Health(_ context.Context) component.Health {
	if c.discovery == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "discovery not initialized"}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

func (c *Component) Describe() component.Description {
	details := "provider=" + c.cfg.Provider
	if c.cfg.Registration.Enabled {
		details += " register=" + c.cfg.Registration.ServiceName
	}
	return component.Description{Type: "discovery", Details: details}
}

// outboundIP returns the local address used for outbound traffic. No
// packet is sent; a UDP dial only selects a route.
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "192.0.2.1:80")
	if err != nil {
		return "", err
	}
	defer conn.Close() //nolint:errcheck
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
