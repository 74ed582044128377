// Package component defines the lifecycle contract shared by everything a
// service starts: HTTP servers, the probe loop, the processing loop,
// database and cache connections.
//
// Components are started in registration order and stopped in reverse.
package component
