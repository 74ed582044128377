package settings

import (
	"fmt"
	"time"

	"github.com/701789262a/backend-dailychat/config"
	"github.com/701789262a/backend-dailychat/database"
	"github.com/701789262a/backend-dailychat/discovery"
	"github.com/701789262a/backend-dailychat/internal/dispatch"
	"github.com/701789262a/backend-dailychat/observability"
	"github.com/701789262a/backend-dailychat/redis"
	"github.com/701789262a/backend-dailychat/server"
	"github.com/701789262a/backend-dailychat/storage"
)

// Busy set backends.
const (
	BusySetMemory = "memory"
	BusySetRedis  = "redis"
)

// BusySetConfig selects where the dispatcher keeps its busy marks. The
// redis backend lets several dispatcher replicas share one set.
type BusySetConfig struct {
	Backend string       `yaml:"backend" mapstructure:"backend"`
	Redis   redis.Config `yaml:"redis" mapstructure:"redis"`
}

// DispatcherConfig configures the dispatcher service. It also serves the
// speaker admin API, hence the database section and read access to the
// nodes' blob storage.
type DispatcherConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Discovery     discovery.Config     `yaml:"discovery" mapstructure:"discovery"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Storage       storage.Config       `yaml:"storage" mapstructure:"storage"`
	BusySet       BusySetConfig        `yaml:"busy_set" mapstructure:"busy_set"`

	Registry       Link          `yaml:"registry" mapstructure:"registry"`
	Staleness      time.Duration `yaml:"staleness" mapstructure:"staleness"`
	NodePort       int           `yaml:"node_port" mapstructure:"node_port"`
	ForwardTimeout time.Duration `yaml:"forward_timeout" mapstructure:"forward_timeout"`
}

func (c *DispatcherConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "dispatcher"
	}
	c.ServiceConfig.ApplyDefaults()
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	c.Server.ApplyDefaults()
	c.Discovery.ApplyDefaults()
	c.Observability.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Storage.ApplyDefaults()
	if c.BusySet.Backend == "" {
		c.BusySet.Backend = BusySetMemory
	}
	if c.BusySet.Backend == BusySetRedis {
		c.BusySet.Redis.ApplyDefaults()
	}
	c.Registry.applyDefaults(discovery.ServiceRegistry)
	if c.Staleness <= 0 {
		c.Staleness = dispatch.DefaultStaleness
	}
	if c.NodePort == 0 {
		c.NodePort = DefaultNodePort
	}
	if c.ForwardTimeout <= 0 {
		c.ForwardTimeout = 30 * time.Second
	}
}

func (c *DispatcherConfig) Validate() error {
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
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	switch c.BusySet.Backend {
	case BusySetMemory:
	case BusySetRedis:
		if err := c.BusySet.Redis.Validate(); err != nil {
			return fmt.Errorf("busy_set.redis: %w", err)
		}
	default:
		return fmt.Errorf("busy_set.backend: unknown backend %q", c.BusySet.Backend)
	}
	if c.NodePort <= 0 || c.NodePort > 65535 {
		return fmt.Errorf("node_port: %d out of range", c.NodePort)
	}
	return c.Registry.validate("registry")
}
