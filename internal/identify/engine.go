// Package identify decides which enrolled speaker a subclip belongs to by
// comparing it against narrowing batches of reference recordings.
package identify

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/701789262a/backend-dailychat/errors"
	"github.com/701789262a/backend-dailychat/internal/speaker"
	"github.com/701789262a/backend-dailychat/logger"
	"github.com/701789262a/backend-dailychat/observability"
	"github.com/701789262a/backend-dailychat/resilience"
	"github.com/701789262a/backend-dailychat/storage"
)

// Comparator scores two recordings in [0,1].
type Comparator interface {
	Compare(ctx context.Context, query, reference []byte) (float64, error)
}

// Fetcher loads a reference recording by hash.
type Fetcher interface {
	Fetch(ctx context.Context, hash string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, hash string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, hash string) ([]byte, error) { return f(ctx, hash) }

// BlobFetcher reads references from the subclip blob namespace.
func BlobFetcher(blobs *storage.BlobStore) Fetcher {
	return FetcherFunc(func(ctx context.Context, hash string) ([]byte, error) {
		return blobs.Get(ctx, storage.KindSubclip, hash)
	})
}

// Recorder persists decided subclips.
type Recorder interface {
	SaveSubclip(ctx context.Context, sub *speaker.Subclip) error
}

type Config struct {
	Workers         int           `yaml:"workers" mapstructure:"workers"`
	Levels          int           `yaml:"levels" mapstructure:"levels"`
	CompareAttempts int           `yaml:"compare_attempts" mapstructure:"compare_attempts"`
	CompareBackoff  time.Duration `yaml:"compare_backoff" mapstructure:"compare_backoff"`
	Threshold       float64       `yaml:"threshold" mapstructure:"threshold"`
}

func (c *Config) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Levels <= 0 {
		c.Levels = 2
	}
	if c.CompareAttempts <= 0 {
		c.CompareAttempts = 5
	}
	if c.CompareBackoff <= 0 {
		c.CompareBackoff = 500 * time.Millisecond
	}
	if c.Threshold == 0 {
		c.Threshold = 0.25
	}
}

func (c *Config) Validate() error {
	if c.Threshold < 0 || c.Threshold >= 1 {
		return fmt.Errorf("identify: threshold must be in [0,1), got %v", c.Threshold)
	}
	return nil
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Strategy   BatchStrategy
	Fetcher    Fetcher
	Comparator Comparator
	Recorder   Recorder
	Metrics    *observability.Metrics
}

// Query is a subclip awaiting identification.
type Query struct {
	Subclip    string
	Audio      []byte
	Requester  string
	Segment    string
	RecordedAt time.Time
}

// Decision is the outcome of one identification. SpeakerID is the
// highest-mean speaker; Evidence is the single best reference, which may
// belong to another speaker.
type Decision struct {
	Subclip           string  `json:"subclip"`
	SpeakerID         int64   `json:"speaker_id"`
	MeanScore         float64 `json:"mean_score"`
	Evidence          string  `json:"evidence"`
	EvidenceSpeakerID int64   `json:"evidence_speaker_id"`
	Score             float64 `json:"score"`
	AboveThreshold    bool    `json:"above_threshold"`
	Compared          int     `json:"compared"`
}

// Known reports whether the decision names an enrolled speaker.
func (d *Decision) Known() bool { return d.SpeakerID != speaker.Unknown }

// Engine runs identifications. It is not meant to run two at once: the
// node's processing loop feeds it one subclip at a time.
type Engine struct {
	cfg       Config
	deps      Deps
	fetchGate *resilience.Bulkhead
	log       *logger.Logger
}

func New(cfg Config, deps Deps, log *logger.Logger) *Engine {
	cfg.ApplyDefaults()
	return &Engine{
		cfg:       cfg,
		deps:      deps,
		fetchGate: resilience.NewGate("reference-fetch"),
		log:       log.WithComponent("identify"),
	}
}

// Identify runs every level and decides. A failed fetch or compare ends
// the identification with IDENTIFICATION_FAILED (code 101) and nothing is
// stored. If storing fails the decision is still returned alongside a
// PERSISTENCE_FAILED error.
func (e *Engine) Identify(ctx context.Context, q Query) (dec *Decision, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanIdentify, observability.AttrSubclip.String(q.Subclip))
	defer func() { observability.EndSpan(span, err) }()
	log := e.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldSubclip, q.Subclip))

	copies := make([][]byte, e.cfg.Workers)
	for i := range copies {
		copies[i] = bytes.Clone(q.Audio)
	}
	scores := NewScores()

	for level := 0; level < e.cfg.Levels; level++ {
		batch, err := e.deps.Strategy.Batch(ctx, scores)
		if err != nil {
			e.deps.Metrics.RecordDecision(ctx, "failed")
			return nil, apperrors.IdentificationFailed(apperrors.FailureRemoteStep, fmt.Errorf("level %d batch: %w", level, err))
		}
		if len(batch) == 0 {
			log.Info("no references to compare", logger.Fields(logger.FieldLevel, level))
			return e.decide(ctx, log, q, &Decision{Subclip: q.Subclip})
		}
		if err := e.runLevel(ctx, level, batch, copies, scores); err != nil {
			e.deps.Metrics.RecordDecision(ctx, "failed")
			log.WithError(err).Warn("identification failed", logger.Fields(logger.FieldLevel, level))
			return nil, apperrors.IdentificationFailed(apperrors.FailureRemoteStep, err)
		}
		log.Debug("level done", logger.Fields(logger.FieldLevel, level, "batch", len(batch), "scored", scores.Len()))
	}

	dec = &Decision{Subclip: q.Subclip, Compared: scores.Len()}
	if id, mean, ok := scores.Winner(); ok {
		dec.SpeakerID, dec.MeanScore = id, mean
	}
	if best, ok := scores.Best(); ok {
		dec.Evidence, dec.EvidenceSpeakerID, dec.Score = best.Reference, best.SpeakerID, best.Score
	}
	return e.decide(ctx, log, q, dec)
}

func (e *Engine) runLevel(ctx context.Context, level int, batch []speaker.Reference, copies [][]byte, scores *Scores) error {
	ctx, span := observability.StartSpan(ctx, observability.SpanLevel,
		observability.AttrLevel.Int(level), observability.AttrBatchSize.Int(len(batch)))

	// nil is the per-worker stop marker.
	work := make(chan *speaker.Reference, len(batch)+len(copies))
	for i := range batch {
		work <- &batch[i]
	}
	for range copies {
		work <- nil
	}

	var (
		wg       sync.WaitGroup
		failed   atomic.Bool
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
		failed.Store(true)
	}
	for _, query := range copies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					fail(fmt.Errorf("compare worker panic: %v", r))
				}
			}()
			for ref := range work {
				if ref == nil {
					return
				}
				// Drain without working once any pair has failed.
				if failed.Load() {
					continue
				}
				if err := e.evaluate(ctx, query, *ref, scores); err != nil {
					fail(err)
				}
			}
		}()
	}
	wg.Wait()

	observability.EndSpan(span, firstErr)
	return firstErr
}

func (e *Engine) evaluate(ctx context.Context, query []byte, ref speaker.Reference, scores *Scores) error {
	audio, err := resilience.ExecuteWithResult(ctx, e.fetchGate, func() ([]byte, error) {
		return e.deps.Fetcher.Fetch(ctx, ref.Hash)
	})
	if err != nil {
		return fmt.Errorf("fetch reference %s: %w", ref.Hash, err)
	}

	retry := resilience.RetryConfig{
		MaxAttempts:    e.cfg.CompareAttempts,
		InitialBackoff: e.cfg.CompareBackoff,
		MaxBackoff:     8 * e.cfg.CompareBackoff,
		BackoffFactor:  2,
		OnRetry: func(attempt int, err error, _ time.Duration) {
			e.log.WithContext(ctx).WithError(err).Debug("compare retry",
				logger.Fields(logger.FieldReference, ref.Hash, "attempt", attempt))
		},
	}
	score, err := resilience.Retry(ctx, retry, func() (float64, error) {
		s, err := e.deps.Comparator.Compare(ctx, query, audio)
		e.deps.Metrics.RecordCompare(ctx, err == nil)
		return s, err
	})
	if err != nil {
		return fmt.Errorf("compare with %s: %w", ref.Hash, err)
	}
	scores.Record(ScoreRow{Reference: ref.Hash, SpeakerID: ref.SpeakerID, Score: score})
	return nil
}

func (e *Engine) decide(ctx context.Context, log *logger.Logger, q Query, dec *Decision) (*Decision, error) {
	dec.AboveThreshold = dec.Score > e.cfg.Threshold
	outcome := "unknown"
	if dec.Known() {
		outcome = "identified"
	}
	e.deps.Metrics.RecordDecision(ctx, outcome)

	sub := &speaker.Subclip{
		Hash:        q.Subclip,
		SpeakerID:   dec.SpeakerID,
		EvaluatedBy: dec.Evidence,
		Requester:   q.Requester,
		Score:       dec.Score,
		SegmentJSON: q.Segment,
		RecordedAt:  q.RecordedAt,
	}
	ctx, span := observability.StartSpan(ctx, observability.SpanPersistence, observability.AttrSpeakerID.Int64(dec.SpeakerID))
	err := e.deps.Recorder.SaveSubclip(ctx, sub)
	observability.EndSpan(span, err)

	fields := logger.Fields(
		logger.FieldSpeakerID, dec.SpeakerID,
		logger.FieldReference, dec.Evidence,
		"score", dec.Score,
		"mean_score", dec.MeanScore,
		"above_threshold", dec.AboveThreshold,
	)
	if err != nil {
		log.WithError(err).Error("decision not stored", fields)
		return dec, apperrors.PersistenceFailed(err).WithDetail("decision", dec)
	}
	log.Info("subclip identified", fields)
	return dec, nil
}
