// Package prober discovers live worker nodes by TCP-connecting to every
// address of the configured ranges on the maintenance port.
package prober

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"github.com/701789262a/backend-dailychat/internal/node"
	"github.com/701789262a/backend-dailychat/logger"
	"github.com/701789262a/backend-dailychat/observability"
)

const (
	DefaultPeriod        = 2 * time.Second
	DefaultDialTimeout   = time.Second
	DefaultMaxConcurrent = 256
)

// Dialer opens a connection; net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config controls a Prober.
type Config struct {
	Ranges        []string
	Port          int
	Period        time.Duration
	DialTimeout   time.Duration
	MaxConcurrent int
}

// Prober runs the liveness sweep. Start is safe to call many times; the
// loop runs once per Prober until its context ends.
type Prober struct {
	cfg      Config
	hosts    []netip.Addr
	registry *node.Registry
	dialer   Dialer
	metrics  *observability.Metrics
	log      *logger.Logger
	now      func() time.Time

	once    sync.Once
	started chan struct{}
	done    chan struct{}
}

// New validates the ranges and builds a Prober writing into registry.
func New(cfg Config, registry *node.Registry, metrics *observability.Metrics, log *logger.Logger) (*Prober, error) {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	hosts, err := ExpandHosts(cfg.Ranges)
	if err != nil {
		return nil, err
	}
	return &Prober{
		cfg:      cfg,
		hosts:    hosts,
		registry: registry,
		dialer:   &net.Dialer{},
		metrics:  metrics,
		log:      log.WithComponent("prober"),
		now:      time.Now,
		started:  make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// WithDialer replaces the network dialer.
func (p *Prober) WithDialer(d Dialer) *Prober {
	p.dialer = d
	return p
}

// Hosts returns the probe targets.
func (p *Prober) Hosts() []netip.Addr { return p.hosts }

// Start launches the sweep loop in the background. It reports whether this
// call started it; later calls are no-ops.
func (p *Prober) Start(ctx context.Context) bool {
	started := false
	p.once.Do(func() {
		started = true
		close(p.started)
		p.log.Info("probing started", logger.Fields(
			"hosts", len(p.hosts),
			"port", p.cfg.Port,
			"period", p.cfg.Period.String(),
		))
		go p.loop(ctx)
	})
	return started
}

// Running reports whether Start has been called.
func (p *Prober) Running() bool {
	select {
	case <-p.started:
		return true
	default:
		return false
	}
}

// Done is closed when the loop exits.
func (p *Prober) Done() <-chan struct{} { return p.done }

func (p *Prober) loop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Info("probing stopped")
			return
		case <-ticker.C:
			// Ticks that land while a sweep runs are dropped by the ticker,
			// so sweeps never overlap.
			start := time.Now()
			p.Sweep(ctx)
			if took := time.Since(start); took > p.cfg.Period {
				p.log.Debug("sweep overran period", logger.Fields("took_ms", took.Milliseconds()))
			}
		}
	}
}

// Sweep probes every host once through MaxConcurrent workers and waits
// for them. It stops feeding hosts when ctx ends.
func (p *Prober) Sweep(ctx context.Context) {
	targets := make(chan netip.Addr)
	var wg sync.WaitGroup
	for range min(p.cfg.MaxConcurrent, len(p.hosts)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for addr := range targets {
				p.probe(ctx, addr)
			}
		}()
	}
feed:
	for _, addr := range p.hosts {
		if ctx.Err() != nil {
			break
		}
		select {
		case targets <- addr:
		case <-ctx.Done():
			break feed
		}
	}
	close(targets)
	wg.Wait()
}

func (p *Prober) probe(ctx context.Context, addr netip.Addr) {
	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.DialTimeout)
	defer cancel()

	target := net.JoinHostPort(addr.String(), strconv.Itoa(p.cfg.Port))
	start := time.Now()
	conn, err := p.dialer.DialContext(dialCtx, "tcp", target)
	latency := time.Since(start)
	if err != nil {
		p.metrics.RecordProbe(ctx, false)
		p.log.Debug("probe failed", logger.Fields(logger.FieldNode, addr.String(), logger.FieldError, err.Error()))
		return
	}
	_ = conn.Close()

	p.metrics.RecordProbe(ctx, true)
	p.registry.Upsert(addr.String(), p.now(), latency)
}
