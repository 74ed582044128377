package kafka

import (
	"context"
	"strings"

	"github.com/701789262a/backend-dailychat/component"
	"github.com/701789262a/backend-dailychat/logger"
)

// Closer is satisfied by the producer.
type Closer interface {
	Close() error
}

// Component ties a producer into the service lifecycle so buffered
// messages are flushed on shutdown.
type Component struct {
	cfg      Config
	log      *logger.Logger
	producer Closer
}

var _ component.Component = (*Component)(nil)

// NewComponent wraps an already constructed producer.
func NewComponent(cfg Config, producer Closer, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, producer: producer, log: log.WithComponent("kafka")}
}

func (c *Component) Name() string { return "kafka" }

func (c *Component) Start(_ context.Context) error { return nil }

func (c *Component) Stop(_ context.Context) error {
	if c.producer == nil {
		return nil
	}
	return c.producer.Close()
}

func (c *Component) Health(_ context.Context) component.Health {
	if c.producer == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "no producer"}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Type:    "kafka",
		Details: "brokers=" + strings.Join(c.cfg.Brokers, ",") + " topic=" + c.cfg.Topic,
	}
}
