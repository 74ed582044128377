package registryapi

import (
	"bytes"
	"context"
	"time"

	"github.com/701789262a/backend-dailychat/component"
	"github.com/701789262a/backend-dailychat/internal/node"
	"github.com/701789262a/backend-dailychat/logger"
)

// TableLogger periodically logs the node table.
type TableLogger struct {
	registry *node.Registry
	interval time.Duration
	window   time.Duration
	log      *logger.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

var _ component.Component = (*TableLogger)(nil)

func NewTableLogger(registry *node.Registry, interval, window time.Duration, log *logger.Logger) *TableLogger {
	return &TableLogger{
		registry: registry,
		interval: interval,
		window:   window,
		log:      log.WithComponent("node-table"),
	}
}

func (t *TableLogger) Name() string { return "node-table" }

func (t *TableLogger) Start(context.Context) error {
	if t.interval <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				t.logTable(now)
			}
		}
	}()
	return nil
}

func (t *TableLogger) logTable(now time.Time) {
	recs := t.registry.Snapshot()
	if len(recs) == 0 {
		return
	}
	var buf bytes.Buffer
	node.RenderTable(&buf, recs, now, t.window)
	t.log.Info("nodes\n" + buf.String())
}

func (t *TableLogger) Stop(ctx context.Context) error {
	if t.cancel == nil {
		return nil
	}
	t.cancel()
	select {
	case <-t.done:
	case <-ctx.Done():
	}
	return nil
}

func (t *TableLogger) Health(context.Context) component.Health {
	return component.Health{Name: t.Name(), Status: component.StatusHealthy}
}
