package server

import (
	"context"

	"github.com/701789262a/backend-dailychat/component"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component adapts Server to the component lifecycle.
type Component struct {
	server *Server
	name   string
}

// NewComponent returns a lifecycle component for s named "http-server".
func NewComponent(s *Server) *Component {
	return &Component{server: s, name: "http-server"}
}

func (c *Component) Name() string { return c.name }

func (c *Component) Start(ctx context.Context) error {
	return c.server.Start(ctx)
}

func (c *Component) Stop(ctx context.Context) error {
	return c.server.Stop(ctx)
}

func (c *Component) Health(ctx context.Context) component.Health {
	c.server.mu.Lock()
	bound := c.server.listener != nil
	c.server.mu.Unlock()
	if !bound {
		return component.Health{Name: c.name, Status: component.StatusUnhealthy, Message: "not listening"}
	}
	return component.Health{Name: c.name, Status: component.StatusHealthy}
}

func (c *Component) Describe() component.Description {
	return component.Description{Type: "server", Details: c.server.Addr()}
}
