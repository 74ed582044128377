package discovery

import (
	"fmt"
	"time"
)

// Provider names.
const (
	ProviderStatic = "static"
	ProviderConsul = "consul"
)

// Config holds service discovery and registration configuration.
type Config struct {
	// Provider selects the discovery backend: "static" or "consul".
	Provider string `mapstructure:"provider"`

	Consul ConsulConfig `mapstructure:"consul"`

	// Static lists the endpoints served by the static provider.
	Static []StaticEndpoint `mapstructure:"static"`

	// CacheTTL bounds how long a lookup result is reused.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	Registration RegistrationConfig `mapstructure:"registration"`
}

// ConsulConfig holds Consul agent connection settings.
type ConsulConfig struct {
	Addr       string `mapstructure:"addr"`
	Scheme     string `mapstructure:"scheme"`
	Token      string `mapstructure:"token"`
	Datacenter string `mapstructure:"datacenter"`
}

// RegistrationConfig controls self-registration on Start.
type RegistrationConfig struct {
	Enabled bool `mapstructure:"enabled"`

	ServiceName string `mapstructure:"service_name"`

	// ServiceID defaults to "<service_name>-<address>-<port>".
	ServiceID string `mapstructure:"service_id"`

	// ServiceAddress is advertised to peers; defaults to the outbound IP.
	ServiceAddress string `mapstructure:"service_address"`
	ServicePort    int    `mapstructure:"service_port"`

	HealthCheckPath     string        `mapstructure:"health_check_path"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	HealthCheckTimeout  time.Duration `mapstructure:"health_check_timeout"`
	DeregisterAfter     time.Duration `mapstructure:"deregister_after"`

	Tags []string `mapstructure:"tags"`
}

// StaticEndpoint describes a statically configured service endpoint.
type StaticEndpoint struct {
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderStatic
	}
	if c.Consul.Addr == "" {
		c.Consul.Addr = "localhost:8500"
	}
	if c.Consul.Scheme == "" {
		c.Consul.Scheme = "http"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 15 * time.Second
	}
	r := &c.Registration
	if r.HealthCheckPath == "" {
		r.HealthCheckPath = "/health"
	}
	if r.HealthCheckInterval == 0 {
		r.HealthCheckInterval = 10 * time.Second
	}
	if r.HealthCheckTimeout == 0 {
		r.HealthCheckTimeout = 2 * time.Second
	}
	if r.DeregisterAfter == 0 {
		r.DeregisterAfter = time.Minute
	}
}

// Validate checks that required fields are present and consistent.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderStatic, ProviderConsul:
	default:
		return fmt.Errorf("unsupported discovery provider %q", c.Provider)
	}
	for i, ep := range c.Static {
		if ep.Name == "" || ep.Address == "" || ep.Port <= 0 {
			return fmt.Errorf("static[%d]: name, address and port are required", i)
		}
	}
	if c.Registration.Enabled {
		if c.Registration.ServiceName == "" {
			return fmt.Errorf("registration.service_name is required")
		}
		if c.Registration.ServicePort <= 0 {
			return fmt.Errorf("registration.service_port must be > 0")
		}
	}
	return nil
}
