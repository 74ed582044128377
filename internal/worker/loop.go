package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/701789262a/backend-dailychat/component"
	apperrors "github.com/701789262a/backend-dailychat/errors"
	"github.com/701789262a/backend-dailychat/internal/notify"
	"github.com/701789262a/backend-dailychat/logger"
	"github.com/701789262a/backend-dailychat/observability"
)

// Loop takes jobs off the queue one at a time. After every job, whatever
// its outcome, it tells the dispatcher the node is free.
type Loop struct {
	queue     *Queue
	processor Processor
	releaser  Releaser
	notifier  *notify.Notifier
	metrics   *observability.Metrics
	node      string
	log       *logger.Logger

	stopIntake context.CancelFunc
	abort      context.CancelFunc
	done       chan struct{}
	mu         sync.Mutex
	busy       bool
}

var _ component.Component = (*Loop)(nil)

// LoopOption customizes a Loop.
type LoopOption func(*Loop)

func WithNotifier(n *notify.Notifier) LoopOption {
	return func(l *Loop) { l.notifier = n }
}

func WithMetrics(m *observability.Metrics) LoopOption {
	return func(l *Loop) { l.metrics = m }
}

// WithNodeName labels events with this node's address.
func WithNodeName(name string) LoopOption {
	return func(l *Loop) { l.node = name }
}

func NewLoop(queue *Queue, processor Processor, releaser Releaser, log *logger.Logger, opts ...LoopOption) *Loop {
	l := &Loop{
		queue:     queue,
		processor: processor,
		releaser:  releaser,
		notifier:  notify.Noop(),
		log:       log.WithComponent("worker"),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Loop) Name() string { return "worker-loop" }

func (l *Loop) Start(ctx context.Context) error {
	jobCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	intake, stopIntake := context.WithCancel(jobCtx)
	l.abort, l.stopIntake = abort, stopIntake
	l.done = make(chan struct{})
	go l.run(intake, jobCtx)
	return nil
}

// Stop ends intake and waits for the job in progress to finish. If ctx
// expires first the job is cancelled; the node is still released.
func (l *Loop) Stop(ctx context.Context) error {
	if l.stopIntake == nil {
		return nil
	}
	l.stopIntake()
	defer l.abort()
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		l.abort()
		<-l.done
		return fmt.Errorf("worker loop: %w", ctx.Err())
	}
}

func (l *Loop) Health(_ context.Context) component.Health {
	l.mu.Lock()
	busy := l.busy
	l.mu.Unlock()
	msg := fmt.Sprintf("queue %d/%d", l.queue.Len(), l.queue.Cap())
	if busy {
		msg += ", processing"
	}
	return component.Health{Name: l.Name(), Status: component.StatusHealthy, Message: msg}
}

func (l *Loop) run(intake, jobCtx context.Context) {
	defer close(l.done)
	for {
		job, ok := l.queue.Dequeue(intake)
		if !ok {
			return
		}
		l.setBusy(true)
		l.handle(jobCtx, job)
		l.setBusy(false)
	}
}

func (l *Loop) setBusy(b bool) {
	l.mu.Lock()
	l.busy = b
	l.mu.Unlock()
}

// handle processes one job. The release runs in a defer so a panicking
// processor still frees the node.
func (l *Loop) handle(ctx context.Context, job Job) {
	ctx = logger.ContextWithJobID(ctx, job.ID)
	ctx, span := observability.StartSpan(ctx, observability.SpanJob, observability.AttrJobID.String(job.ID))
	log := l.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldJobID, job.ID, logger.FieldClip, job.ClipHash))
	start := time.Now()

	var (
		out *Outcome
		err error
	)
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.Internal(fmt.Errorf("job panic: %v", r))
		}
		elapsed := time.Since(start)
		observability.EndSpan(span, err)
		l.finish(ctx, log, job, out, err, elapsed)

		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if relErr := l.releaser.Release(relCtx); relErr != nil {
			log.WithError(relErr).Error("unbusy signal failed")
		}
	}()

	out, err = l.processor.Process(ctx, job)
}

func (l *Loop) finish(ctx context.Context, log *logger.Logger, job Job, out *Outcome, err error, elapsed time.Duration) {
	status := notify.StatusDone
	if err != nil {
		status = notify.StatusFailed
	}
	speed := 0.0
	if out != nil && out.ClipLength > 0 {
		speed = elapsed.Seconds() / out.ClipLength.Seconds()
	}
	l.metrics.RecordJob(ctx, elapsed, speed, status)
	l.metrics.RecordQueueLength(ctx, l.queue.Len())

	fields := logger.Fields(
		logger.FieldStatus, status,
		logger.FieldDuration, elapsed.Milliseconds(),
		logger.FieldSpeedFactor, speed,
		logger.FieldQueueLength, l.queue.Len(),
	)
	if err != nil {
		log.WithError(err).Error("job failed", fields)
	} else {
		log.Info("job done", fields)
	}

	ev := notify.Event{
		JobID:      job.ID,
		Node:       l.node,
		Clip:       job.ClipHash,
		Requester:  job.UserID,
		RecordedAt: job.RecordedAt,
		Status:     status,
		DurationMS: elapsed.Milliseconds(),
	}
	if out != nil {
		ev.Subclips = out.Results
	}
	if err != nil {
		appErr := apperrors.From(err)
		ev.Error = string(appErr.Code)
		if code, ok := appErr.Details["failure_code"].(int); ok {
			ev.FailureCode = code
		}
	}
	l.notifier.Notify(ctx, ev)
}
