// Package resilience holds the fault-tolerance primitives used across the
// services:
//
//   - Retry bounds repeated attempts of a transient operation.
//   - Bulkhead caps how many callers may be inside a section at once; with
//     a single slot it is the mutual-exclusion gate for remote fetches.
//   - CircuitBreaker fails fast against a peer that keeps erroring.
package resilience
