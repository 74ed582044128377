package identify

import (
	"context"
	"math"

	"github.com/701789262a/backend-dailychat/internal/speaker"
)

// BatchStrategy chooses the references compared at each level. scores
// holds what earlier levels of the same identification measured.
type BatchStrategy interface {
	Batch(ctx context.Context, scores *Scores) ([]speaker.Reference, error)
}

// ReferenceLister yields the newest references of every known speaker.
type ReferenceLister interface {
	RecentReferences(ctx context.Context, perSpeaker int) ([]speaker.Reference, error)
}

const (
	DefaultRecentPerSpeaker = 3
	DefaultWeightedMax      = 10
	DefaultWeight           = 0.5
)

// RecentPerSpeaker takes the K most recent references of every speaker,
// the same batch at every level.
type RecentPerSpeaker struct {
	Refs ReferenceLister
	K    int
}

func (r RecentPerSpeaker) Batch(ctx context.Context, _ *Scores) ([]speaker.Reference, error) {
	k := r.K
	if k <= 0 {
		k = DefaultRecentPerSpeaker
	}
	return r.Refs.RecentReferences(ctx, k)
}

// ScoreWeighted takes round(Max*weight) references per speaker, weight
// being the speaker's mean score so far (DefaultWeight before any), and
// at least one. Speakers whose mean fell below Floor are dropped.
type ScoreWeighted struct {
	Refs  ReferenceLister
	Max   int
	Floor float64
}

func (w ScoreWeighted) Batch(ctx context.Context, scores *Scores) ([]speaker.Reference, error) {
	maxPer := w.Max
	if maxPer <= 0 {
		maxPer = DefaultWeightedMax
	}
	refs, err := w.Refs.RecentReferences(ctx, maxPer)
	if err != nil {
		return nil, err
	}
	var means map[int64]float64
	if scores != nil {
		means = scores.SpeakerMeans()
	}

	out := refs[:0:0]
	taken := make(map[int64]int)
	for _, ref := range refs {
		weight, scored := means[ref.SpeakerID]
		if !scored {
			weight = DefaultWeight
		} else if weight < w.Floor {
			continue
		}
		quota := max(1, int(math.Round(float64(maxPer)*weight)))
		if taken[ref.SpeakerID] >= quota {
			continue
		}
		taken[ref.SpeakerID]++
		out = append(out, ref)
	}
	return out, nil
}
