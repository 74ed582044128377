// Package notify publishes job outcomes to external sinks. Delivery is
// best effort: a failing sink is logged and never fails the job.
package notify

import (
	"context"
	"time"

	"github.com/701789262a/backend-dailychat/internal/identify"
	"github.com/701789262a/backend-dailychat/logger"
	"github.com/701789262a/backend-dailychat/provider"
)

const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

// Event describes a finished job.
type Event struct {
	JobID       string    `json:"job_id"`
	Node        string    `json:"node,omitempty"`
	Clip        string    `json:"clip"`
	Requester   string    `json:"requester,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
	Status      string    `json:"status"`
	FailureCode int       `json:"failure_code,omitempty"`
	Error       string    `json:"error,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
	Subclips    []Result  `json:"subclips"`
}

// Result pairs a subclip with its decision. Decision is nil when the
// subclip could not be identified.
type Result struct {
	Subclip  string             `json:"subclip"`
	Decision *identify.Decision `json:"decision,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// Notifier fans an event out to every sink.
type Notifier struct {
	sinks []provider.Sink[Event]
	log   *logger.Logger
}

// New returns a Notifier. With no sinks it does nothing.
func New(log *logger.Logger, sinks ...provider.Sink[Event]) *Notifier {
	return &Notifier{sinks: sinks, log: log.WithComponent("notify")}
}

// Noop discards every event.
func Noop() *Notifier { return New(logger.Nop()) }

// Sinks lists the configured sink names.
func (n *Notifier) Sinks() []string {
	names := make([]string, len(n.sinks))
	for i, s := range n.sinks {
		names[i] = s.Name()
	}
	return names
}

func (n *Notifier) Notify(ctx context.Context, ev Event) {
	for _, s := range n.sinks {
		if err := s.Send(ctx, ev); err != nil {
			n.log.WithContext(ctx).WithError(err).Warn("notification not delivered",
				logger.Fields("sink", s.Name(), logger.FieldJobID, ev.JobID))
		}
	}
}
