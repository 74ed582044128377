package discovery

import (
	"context"
	"errors"
	"net"
	"strconv"
)

// Common discovery errors.
var (
	ErrServiceNotFound    = errors.New("service not found")
	ErrNoHealthyEndpoints = errors.New("no healthy endpoints found")
)

// Well-known service names.
const (
	ServiceRegistry   = "voiceid-registry"
	ServiceDispatcher = "voiceid-dispatcher"
	ServiceNode       = "voiceid-node"
)

// ServiceInstance represents a discovered service endpoint.
type ServiceInstance struct {
	ID       string
	Name     string
	Address  string
	Port     int
	Tags     []string
	Metadata map[string]string
}

// HostPort returns address:port.
func (s ServiceInstance) HostPort() string {
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

// URL returns the base HTTP URL of the instance.
func (s ServiceInstance) URL() string {
	return "http://" + s.HostPort()
}

// ServiceInfo describes an instance to register.
type ServiceInfo struct {
	ID       string
	Name     string
	Address  string
	Port     int
	Tags     []string
	Metadata map[string]string
}

// Discovery finds instances of a named service.
type Discovery interface {
	// Discover returns all healthy instances of the named service.
	Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error)
	Close() error
}

// Registry announces this process to other services.
type Registry interface {
	Register(ctx context.Context, service *ServiceInfo) error
	Deregister(ctx context.Context, serviceID string) error
}
