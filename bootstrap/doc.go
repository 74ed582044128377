// Package bootstrap provides the service lifecycle shared by the registry,
// dispatcher and node: typed config, ordered component startup, hooks,
// a startup summary table and graceful shutdown on SIGINT/SIGTERM.
package bootstrap
