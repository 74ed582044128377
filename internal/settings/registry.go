package settings

import (
	"fmt"
	"time"

	"github.com/701789262a/backend-dailychat/config"
	"github.com/701789262a/backend-dailychat/discovery"
	"github.com/701789262a/backend-dailychat/internal/prober"
	"github.com/701789262a/backend-dailychat/observability"
	"github.com/701789262a/backend-dailychat/server"
)

// DefaultNodePort is the port worker nodes serve on, probed by the
// registry and targeted by the dispatcher.
const DefaultNodePort = 5002

// ProbeConfig controls the liveness sweep.
type ProbeConfig struct {
	Ranges        []string      `yaml:"ranges" mapstructure:"ranges"`
	Port          int           `yaml:"port" mapstructure:"port"`
	Period        time.Duration `yaml:"period" mapstructure:"period"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxConcurrent int           `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// Prober converts to the prober package's config.
func (p ProbeConfig) Prober() prober.Config {
	return prober.Config{
		Ranges:        p.Ranges,
		Port:          p.Port,
		Period:        p.Period,
		DialTimeout:   p.Timeout,
		MaxConcurrent: p.MaxConcurrent,
	}
}

// TableConfig controls the periodic node table in the registry log.
type TableConfig struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	Window   time.Duration `yaml:"window" mapstructure:"window"`
}

// RegistryConfig configures the registry service.
type RegistryConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Discovery     discovery.Config     `yaml:"discovery" mapstructure:"discovery"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	Probe         ProbeConfig          `yaml:"probe" mapstructure:"probe"`
	Table         TableConfig          `yaml:"table" mapstructure:"table"`

	// Dispatcher receives relayed /unbusy calls.
	Dispatcher Link `yaml:"dispatcher" mapstructure:"dispatcher"`

	// AutoStart begins probing at boot instead of waiting for /start.
	AutoStart bool `yaml:"auto_start" mapstructure:"auto_start"`
}

func (c *RegistryConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "registry"
	}
	c.ServiceConfig.ApplyDefaults()
	if c.Server.Port == 0 {
		c.Server.Port = 5001
	}
	c.Server.ApplyDefaults()
	c.Discovery.ApplyDefaults()
	c.Observability.ApplyDefaults()
	if c.Probe.Port == 0 {
		c.Probe.Port = DefaultNodePort
	}
	if c.Probe.Period <= 0 {
		c.Probe.Period = prober.DefaultPeriod
	}
	if c.Probe.Timeout <= 0 {
		c.Probe.Timeout = prober.DefaultDialTimeout
	}
	if c.Probe.MaxConcurrent <= 0 {
		c.Probe.MaxConcurrent = prober.DefaultMaxConcurrent
	}
	if c.Table.Interval <= 0 {
		c.Table.Interval = 10 * time.Second
	}
	if c.Table.Window <= 0 {
		c.Table.Window = 20 * time.Second
	}
	c.Dispatcher.applyDefaults(discovery.ServiceDispatcher)
}

func (c *RegistryConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Discovery.Validate(); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return err
	}
	if len(c.Probe.Ranges) == 0 {
		return fmt.Errorf("probe.ranges: at least one range is required")
	}
	if _, err := prober.ExpandHosts(c.Probe.Ranges); err != nil {
		return fmt.Errorf("probe.ranges: %w", err)
	}
	if c.Probe.Port <= 0 || c.Probe.Port > 65535 {
		return fmt.Errorf("probe.port: %d out of range", c.Probe.Port)
	}
	return c.Dispatcher.validate("dispatcher")
}
