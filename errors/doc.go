// Package errors provides the structured error type shared by every service.
// Errors carry a machine-readable code, an HTTP status and a retryable flag
// so handlers can answer callers with a fixed set of failure codes.
package errors
