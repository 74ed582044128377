// Package discovery resolves the registry and dispatcher addresses and
// lets nodes announce themselves.
//
// Backends:
//
//   - discovery/static: endpoints listed in configuration
//   - discovery/consul: HashiCorp Consul catalog and health checks
//
// Client caches lookups for CacheTTL and rotates through instances.
package discovery
