// Package node tracks which worker nodes are alive.
package node

import (
	"net/netip"
	"slices"
	"strings"
	"sync"
	"time"
)

// Record is the last successful liveness probe of one node.
type Record struct {
	Address  string        `json:"address"`
	LastSeen time.Time     `json:"last_seen"`
	Latency  time.Duration `json:"latency"`
}

// Fresh reports whether the node was seen within window of now.
func (r Record) Fresh(now time.Time, window time.Duration) bool {
	return now.Sub(r.LastSeen) <= window
}

// Registry is the in-memory address → Record map written by the prober
// and read by the dispatcher. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]Record)}
}

// Upsert stores a record for address. A lastSeen older than the stored
// one is ignored so readers never see a node's timestamp move backwards.
// It reports whether the record was written.
func (r *Registry) Upsert(address string, lastSeen time.Time, latency time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.records[address]; ok && lastSeen.Before(cur.LastSeen) {
		return false
	}
	r.records[address] = Record{Address: address, LastSeen: lastSeen, Latency: latency}
	return true
}

// Get returns the record for address.
func (r *Registry) Get(address string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[address]
	return rec, ok
}

// Len returns the number of known nodes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Snapshot returns a copy of all records ordered by address.
func (r *Registry) Snapshot() []Record {
	r.mu.RLock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	r.mu.RUnlock()
	SortByAddress(out)
	return out
}

// SortByAddress orders records by IP when both addresses parse, falling
// back to string order.
func SortByAddress(recs []Record) {
	slices.SortFunc(recs, func(a, b Record) int {
		return compareAddress(a.Address, b.Address)
	})
}

func compareAddress(a, b string) int {
	ia, errA := netip.ParseAddr(a)
	ib, errB := netip.ParseAddr(b)
	if errA == nil && errB == nil {
		return ia.Compare(ib)
	}
	return strings.Compare(a, b)
}
