package worker

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/701789262a/backend-dailychat/errors"
	"github.com/701789262a/backend-dailychat/internal/identify"
	"github.com/701789262a/backend-dailychat/internal/notify"
	"github.com/701789262a/backend-dailychat/internal/segment"
	"github.com/701789262a/backend-dailychat/storage"
)

// Processor runs one job to completion.
type Processor interface {
	Process(ctx context.Context, job Job) (*Outcome, error)
}

// Outcome is what a processed job produced.
type Outcome struct {
	ClipLength time.Duration
	Results    []notify.Result
}

// Splitter cuts a clip into stored subclips.
type Splitter interface {
	Split(ctx context.Context, clip []byte, fileName string) (*segment.Result, error)
}

// Identifier decides one subclip.
type Identifier interface {
	Identify(ctx context.Context, q identify.Query) (*identify.Decision, error)
}

// Pipeline segments the clip and identifies every subclip in order.
type Pipeline struct {
	blobs    *storage.BlobStore
	splitter Splitter
	engine   Identifier
}

func NewPipeline(blobs *storage.BlobStore, splitter Splitter, engine Identifier) *Pipeline {
	return &Pipeline{blobs: blobs, splitter: splitter, engine: engine}
}

// Process stops at the first subclip that fails identification. A
// decision that could not be stored is kept in the results and reported
// as the job error once every subclip has run.
func (p *Pipeline) Process(ctx context.Context, job Job) (*Outcome, error) {
	clip, err := p.blobs.Get(ctx, storage.KindClip, job.ClipHash)
	if err != nil {
		return nil, fmt.Errorf("load clip %s: %w", job.ClipHash, err)
	}
	split, err := p.splitter.Split(ctx, clip, job.FileName)
	if err != nil {
		return nil, err
	}
	subs := split.Subclips

	out := &Outcome{ClipLength: split.Duration, Results: make([]notify.Result, 0, len(subs))}

	var persistErr error
	for _, sub := range subs {
		dec, err := p.engine.Identify(ctx, identify.Query{
			Subclip:    sub.Hash,
			Audio:      sub.Audio,
			Requester:  job.UserID,
			Segment:    sub.Metadata(),
			RecordedAt: job.RecordedAt,
		})
		res := notify.Result{Subclip: sub.Hash, Decision: dec}
		if err != nil {
			res.Error = string(apperrors.From(err).Code)
			out.Results = append(out.Results, res)
			if apperrors.HasCode(err, apperrors.ErrCodePersistenceFailed) {
				if persistErr == nil {
					persistErr = err
				}
				continue
			}
			return out, err
		}
		out.Results = append(out.Results, res)
	}
	return out, persistErr
}
