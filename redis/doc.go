// Package redis wraps go-redis with the service logger, config defaults,
// key prefixing and component lifecycle.
//
// The dispatcher uses the set commands (SAdd, SRem, SMembers) to keep the
// busy set outside its own process, so several dispatcher replicas can
// share one view of which nodes are occupied.
package redis
