package node

import (
	"time"
)

// Status is the JSON shape of one node in the registry's GET / response,
// keyed by address: {"10.0.0.5": {"last_seen": 1700000000, "latency": 0.41}}.
// last_seen is unix seconds; latency is milliseconds.
type Status struct {
	LastSeen int64   `json:"last_seen"`
	Latency  float64 `json:"latency"`
}

// StatusMap is the registry's GET / body.
type StatusMap map[string]Status

// ToStatusMap converts records to the wire shape.
func ToStatusMap(recs []Record) StatusMap {
	m := make(StatusMap, len(recs))
	for _, r := range recs {
		m[r.Address] = Status{
			LastSeen: r.LastSeen.Unix(),
			Latency:  float64(r.Latency.Microseconds()) / 1000,
		}
	}
	return m
}

// Records converts the wire shape back to records ordered by address.
func (m StatusMap) Records() []Record {
	out := make([]Record, 0, len(m))
	for addr, s := range m {
		out = append(out, Record{
			Address:  addr,
			LastSeen: time.Unix(s.LastSeen, 0),
			Latency:  time.Duration(s.Latency * float64(time.Millisecond)),
		})
	}
	SortByAddress(out)
	return out
}
