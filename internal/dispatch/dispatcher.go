// Package dispatch places jobs on idle, recently seen nodes and tracks
// which nodes are busy.
package dispatch

import (
	"context"
	"time"

	apperrors "github.com/701789262a/backend-dailychat/errors"
	"github.com/701789262a/backend-dailychat/internal/node"
	"github.com/701789262a/backend-dailychat/logger"
	"github.com/701789262a/backend-dailychat/observability"
)

// DefaultStaleness is how recently a node must have answered a probe to
// receive work.
const DefaultStaleness = 20 * time.Second

// Dispatcher assigns jobs first-fit over the ordered node snapshot. It
// holds no queue: when nothing is free the caller is told to try later.
type Dispatcher struct {
	source    node.Source
	busy      BusySet
	forwarder Forwarder
	staleness time.Duration
	metrics   *observability.Metrics
	log       *logger.Logger
	now       func() time.Time
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithStaleness overrides DefaultStaleness.
func WithStaleness(d time.Duration) Option {
	return func(x *Dispatcher) {
		if d > 0 {
			x.staleness = d
		}
	}
}

// WithMetrics records assignments and rejections.
func WithMetrics(m *observability.Metrics) Option {
	return func(x *Dispatcher) { x.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(x *Dispatcher) { x.now = now }
}

func New(source node.Source, busy BusySet, forwarder Forwarder, log *logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		source:    source,
		busy:      busy,
		forwarder: forwarder,
		staleness: DefaultStaleness,
		log:       log.WithComponent("dispatcher"),
		now:       time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Assign picks the first fresh node it can mark busy and forwards job to
// it. If forwarding fails the mark is released and NO_CAPACITY returned;
// the job is not retried on another node.
func (d *Dispatcher) Assign(ctx context.Context, job Job) (address string, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanAssign, observability.AttrJobID.String(job.ID))
	defer func() { observability.EndSpan(span, err) }()
	log := d.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldJobID, job.ID))

	snapshot, err := d.source.Snapshot(ctx)
	if err != nil {
		log.WithError(err).Warn("node snapshot unavailable")
		return "", apperrors.ServiceUnavailable("registry").WithCause(err)
	}

	now := d.now()
	for _, rec := range snapshot {
		if !rec.Fresh(now, d.staleness) {
			continue
		}
		added, err := d.busy.Add(ctx, rec.Address)
		if err != nil {
			return "", apperrors.ServiceUnavailable("busy set").WithCause(err)
		}
		if !added {
			continue
		}
		return d.forward(ctx, log, rec.Address, job)
	}

	d.metrics.RecordNoCapacity(ctx, "no_node")
	log.Info("no idle node", logger.Fields("nodes", len(snapshot)))
	return "", apperrors.NoCapacity("no idle node")
}

func (d *Dispatcher) forward(ctx context.Context, log *logger.Logger, address string, job Job) (string, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanForward, observability.AttrNode.String(address))
	err := d.forwarder.Forward(ctx, address, job)
	observability.EndSpan(span, err)
	if err != nil {
		// The request context may already be gone; the mark must still go.
		if relErr := d.Release(context.WithoutCancel(ctx), address); relErr != nil {
			log.WithError(relErr).Error("release after failed forward", logger.Fields(logger.FieldNode, address))
		}
		d.metrics.RecordNoCapacity(ctx, "forward")
		log.WithError(err).Warn("forward failed", logger.Fields(logger.FieldNode, address))
		return "", apperrors.NoCapacity("forward failed").WithCause(err)
	}
	d.metrics.RecordAssignment(ctx, address)
	log.Info("job assigned", logger.Fields(logger.FieldNode, address))
	return address, nil
}

// Release marks address idle again. Releasing an idle node is a no-op.
func (d *Dispatcher) Release(ctx context.Context, address string) error {
	if err := d.busy.Remove(ctx, address); err != nil {
		return apperrors.ServiceUnavailable("busy set").WithCause(err)
	}
	d.log.Debug("node released", logger.Fields(logger.FieldNode, address))
	return nil
}

// Busy lists the nodes currently marked busy.
func (d *Dispatcher) Busy(ctx context.Context) ([]string, error) {
	return d.busy.Members(ctx)
}
