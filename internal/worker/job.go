// Package worker runs on every node: it accepts jobs from the dispatcher,
// queues them, and processes them one at a time.
package worker

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Job is one clip queued on this node.
type Job struct {
	ID         string
	ClipHash   string
	FileName   string
	UserID     string
	EnqueuedAt time.Time
	RecordedAt time.Time
}

// ParseTimestamp reads the recording start from the submitted timestamp
// field. Clients send either a path whose file stem is unix seconds
// ("uploads/1700000000.wav"), bare unix seconds, or RFC3339.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	stem := raw[strings.LastIndex(raw, "/")+1:]
	if i := strings.Index(stem, "."); i >= 0 {
		stem = stem[:i]
	}
	secs, err := strconv.ParseInt(stem, 10, 64)
	if err != nil || secs < 0 {
		return time.Time{}, fmt.Errorf("timestamp %q is not unix seconds", raw)
	}
	return time.Unix(secs, 0).UTC(), nil
}
