package identify

import (
	"cmp"
	"slices"
	"sync"
)

// ScoreRow is one comparison result against a reference.
type ScoreRow struct {
	Reference string  `json:"reference"`
	SpeakerID int64   `json:"speaker_id"`
	Score     float64 `json:"score"`
}

// Scores collects the rows of one identification. A reference compared
// again replaces its earlier row.
type Scores struct {
	mu   sync.Mutex
	rows map[string]ScoreRow
}

func NewScores() *Scores {
	return &Scores{rows: make(map[string]ScoreRow)}
}

func (s *Scores) Record(row ScoreRow) {
	s.mu.Lock()
	s.rows[row.Reference] = row
	s.mu.Unlock()
}

func (s *Scores) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Rows returns a copy ordered by reference.
func (s *Scores) Rows() []ScoreRow {
	s.mu.Lock()
	out := make([]ScoreRow, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	s.mu.Unlock()
	slices.SortFunc(out, func(a, b ScoreRow) int { return cmp.Compare(a.Reference, b.Reference) })
	return out
}

// SpeakerMeans averages the rows of every speaker that has at least one.
func (s *Scores) SpeakerMeans() map[int64]float64 {
	sums := make(map[int64]float64)
	counts := make(map[int64]int)
	for _, r := range s.Rows() {
		sums[r.SpeakerID] += r.Score
		counts[r.SpeakerID]++
	}
	means := make(map[int64]float64, len(sums))
	for id, sum := range sums {
		means[id] = sum / float64(counts[id])
	}
	return means
}

// Winner returns the speaker with the highest mean. Ties go to the lowest
// speaker id.
func (s *Scores) Winner() (speakerID int64, mean float64, ok bool) {
	means := s.SpeakerMeans()
	ids := make([]int64, 0, len(means))
	for id := range means {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if !ok || means[id] > mean {
			speakerID, mean, ok = id, means[id], true
		}
	}
	return speakerID, mean, ok
}

// Best returns the single highest-scoring row, which need not belong to
// the Winner. Ties go to the lowest speaker id, then reference.
func (s *Scores) Best() (ScoreRow, bool) {
	rows := s.Rows()
	if len(rows) == 0 {
		return ScoreRow{}, false
	}
	best := rows[0]
	for _, r := range rows[1:] {
		if r.Score > best.Score || (r.Score == best.Score && r.SpeakerID < best.SpeakerID) {
			best = r
		}
	}
	return best, true
}
