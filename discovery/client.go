package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/701789262a/backend-dailychat/logger"
)

// Client adds a TTL cache and round-robin selection on top of a Discovery.
type Client struct {
	discovery Discovery
	ttl       time.Duration
	log       *logger.Logger

	mu      sync.Mutex
	cache   map[string]cacheEntry
	rrIndex map[string]int
}

type cacheEntry struct {
	instances []ServiceInstance
	expiry    time.Time
}

// NewClient wraps disc. A zero ttl disables caching.
func NewClient(disc Discovery, ttl time.Duration, log *logger.Logger) *Client {
	return &Client{
		discovery: disc,
		ttl:       ttl,
		log:       log,
		cache:     make(map[string]cacheEntry),
		rrIndex:   make(map[string]int),
	}
}

// Discover returns all healthy instances of a service, using cache when fresh.
func (c *Client) Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error) {
	c.mu.Lock()
	entry, ok := c.cache[serviceName]
	c.mu.Unlock()
	if ok && time.Now().Before(entry.expiry) {
		return entry.instances, nil
	}

	instances, err := c.discovery.Discover(ctx, serviceName)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, ErrNoHealthyEndpoints
	}
	if c.ttl > 0 {
		c.mu.Lock()
		c.cache[serviceName] = cacheEntry{instances: instances, expiry: time.Now().Add(c.ttl)}
		c.mu.Unlock()
	}
	return instances, nil
}

// DiscoverOne picks one instance round-robin.
func (c *Client) DiscoverOne(ctx context.Context, serviceName string) (ServiceInstance, error) {
	instances, err := c.Discover(ctx, serviceName)
	if err != nil {
		return ServiceInstance{}, err
	}
	c.mu.Lock()
	idx := c.rrIndex[serviceName]
	c.rrIndex[serviceName] = idx + 1
	c.mu.Unlock()
	return instances[idx%len(instances)], nil
}

// ResolveURL returns the base URL of one instance.
func (c *Client) ResolveURL(ctx context.Context, serviceName string) (string, error) {
	inst, err := c.DiscoverOne(ctx, serviceName)
	if err != nil {
		return "", err
	}
	return inst.URL(), nil
}

// Invalidate drops the cached entry, typically after a call to it failed.
func (c *Client) Invalidate(serviceName string) {
	c.mu.Lock()
	delete(c.cache, serviceName)
	c.mu.Unlock()
}
