// Package settings holds the configuration of the three voiceid services:
// the registry, the dispatcher and the worker node. Each type embeds
// config.ServiceConfig and satisfies bootstrap.Config.
package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/701789262a/backend-dailychat/discovery"
	"github.com/701789262a/backend-dailychat/internal/node"
)

// Link points at a peer service. URL wins when set; otherwise the peer is
// resolved through discovery under Service.
type Link struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Service string        `yaml:"service" mapstructure:"service"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

func (l *Link) applyDefaults(service string) {
	if l.Service == "" {
		l.Service = service
	}
	if l.Timeout <= 0 {
		l.Timeout = 5 * time.Second
	}
}

func (l *Link) validate(name string) error {
	if l.URL == "" && l.Service == "" {
		return fmt.Errorf("%s: url or service is required", name)
	}
	return nil
}

// Resolver returns a node.URLResolver for the link. The discovery client
// is only consulted when no static URL is configured.
func (l Link) Resolver(client *discovery.Client) node.URLResolver {
	if l.URL != "" {
		return node.StaticURL(l.URL)
	}
	service := l.Service
	return func(ctx context.Context) (string, error) {
		if client == nil {
			return "", fmt.Errorf("no discovery client to resolve %q", service)
		}
		return client.ResolveURL(ctx, service)
	}
}
