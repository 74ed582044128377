// Package static implements discovery from a fixed endpoint list.
package static

import (
	"context"
	"fmt"
	"sync"

	"github.com/701789262a/backend-dailychat/discovery"
	"github.com/701789262a/backend-dailychat/logger"
)

func init() {
	discovery.RegisterProviderFactory(discovery.ProviderStatic, func(cfg discovery.Config, _ *logger.Logger) (discovery.Discovery, discovery.Registry, error) {
		p := NewProvider(cfg.Static)
		return p, p, nil
	})
}

// Provider keeps instances in memory. Register and Deregister mutate the
// list, which makes it usable as an in-process registry in tests.
type Provider struct {
	mu        sync.RWMutex
	instances map[string][]discovery.ServiceInstance
}

// NewProvider creates a Provider pre-populated from static config.
func NewProvider(endpoints []discovery.StaticEndpoint) *Provider {
	p := &Provider{instances: make(map[string][]discovery.ServiceInstance)}
	for _, ep := range endpoints {
		p.instances[ep.Name] = append(p.instances[ep.Name], discovery.ServiceInstance{
			ID:      fmt.Sprintf("%s-%s-%d", ep.Name, ep.Address, ep.Port),
			Name:    ep.Name,
			Address: ep.Address,
			Port:    ep.Port,
		})
	}
	return p
}

func (p *Provider) Register(_ context.Context, svc *discovery.ServiceInfo) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instances[svc.Name] = append(p.instances[svc.Name], discovery.ServiceInstance{
		ID:       svc.ID,
		Name:     svc.Name,
		Address:  svc.Address,
		Port:     svc.Port,
		Tags:     svc.Tags,
		Metadata: svc.Metadata,
	})
	return nil
}

func (p *Provider) Deregister(_ context.Context, serviceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, list := range p.instances {
		for i, inst := range list {
			if inst.ID == serviceID {
				p.instances[name] = append(list[:i:i], list[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (p *Provider) Discover(_ context.Context, serviceName string) ([]discovery.ServiceInstance, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	instances := p.instances[serviceName]
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: %s", discovery.ErrServiceNotFound, serviceName)
	}
	out := make([]discovery.ServiceInstance, len(instances))
	copy(out, instances)
	return out, nil
}

func (p *Provider) Close() error { return nil }

var (
	_ discovery.Registry  = (*Provider)(nil)
	_ discovery.Discovery = (*Provider)(nil)
)
