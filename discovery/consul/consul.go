// Package consul implements discovery on HashiCorp Consul.
package consul

import (
	"context"
	"fmt"

	"github.com/hashicorp/consul/api"

	"github.com/701789262a/backend-dailychat/discovery"
	"github.com/701789262a/backend-dailychat/logger"
)

func init() {
	discovery.RegisterProviderFactory(discovery.ProviderConsul, func(cfg discovery.Config, log *logger.Logger) (discovery.Discovery, discovery.Registry, error) {
		p, err := NewProvider(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	})
}

// Provider implements both discovery.Registry and discovery.Discovery using HashiCorp Consul.
type Provider struct {
	client *api.Client
	reg    discovery.RegistrationConfig
	log    *logger.Logger
}

// NewProvider creates a Provider from the given Config.
func NewProvider(cfg discovery.Config, log *logger.Logger) (*Provider, error) {
	apiCfg := api.DefaultConfig()
	apiCfg.Address = cfg.Consul.Addr
	apiCfg.Scheme = cfg.Consul.Scheme
	apiCfg.Token = cfg.Consul.Token
	if cfg.Consul.Datacenter != "" {
		apiCfg.Datacenter = cfg.Consul.Datacenter
	}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	return &Provider{client: client, reg: cfg.Registration, log: log}, nil
}

// Register announces the service with an HTTP health check against its
// own health endpoint.
func (p *Provider) Register(_ context.Context, svc *discovery.ServiceInfo) error {
	reg := &api.AgentServiceRegistration{
		ID:      svc.ID,
		Name:    svc.Name,
		Address: svc.Address,
		Port:    svc.Port,
		Tags:    svc.Tags,
		Meta:    svc.Metadata,
	}
	if p.reg.HealthCheckPath != "" {
		reg.Check = &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s%s", discovery.ServiceInstance{Address: svc.Address, Port: svc.Port}.HostPort(), p.reg.HealthCheckPath),
			Interval:                       p.reg.HealthCheckInterval.String(),
			Timeout:                        p.reg.HealthCheckTimeout.String(),
			DeregisterCriticalServiceAfter: p.reg.DeregisterAfter.String(),
		}
	}

	if err := p.client.Agent().ServiceRegister(reg); err != nil {
		return fmt.Errorf("consul register %q: %w", svc.Name, err)
	}
	p.log.Info("service registered", map[string]interface{}{
		"service_id": svc.ID, "address": svc.Address, "port": svc.Port,
	})
	return nil
}

func (p *Provider) Deregister(_ context.Context, serviceID string) error {
	if err := p.client.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("consul deregister %q: %w", serviceID, err)
	}
	p.log.Info("service deregistered", map[string]interface{}{"service_id": serviceID})
	return nil
}

// Discover returns instances whose health checks are passing.
func (p *Provider) Discover(ctx context.Context, serviceName string) ([]discovery.ServiceInstance, error) {
	opts := (&api.QueryOptions{}).WithContext(ctx)
	entries, _, err := p.client.Health().Service(serviceName, "", true, opts)
	if err != nil {
		return nil, fmt.Errorf("consul discover %q: %w", serviceName, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", discovery.ErrNoHealthyEndpoints, serviceName)
	}

	instances := make([]discovery.ServiceInstance, 0, len(entries))
	for _, e := range entries {
		addr := e.Service.Address
		if addr == "" && e.Node != nil {
			addr = e.Node.Address
		}
		instances = append(instances, discovery.ServiceInstance{
			ID:       e.Service.ID,
			Name:     e.Service.Service,
			Address:  addr,
			Port:     e.Service.Port,
			Tags:     e.Service.Tags,
			Metadata: e.Service.Meta,
		})
	}
	return instances, nil
}

// Close is a no-op; the HTTP client does not require explicit closing.
func (p *Provider) Close() error { return nil }

var (
	_ discovery.Registry  = (*Provider)(nil)
	_ discovery.Discovery = (*Provider)(nil)
)
