// Package segment splits an uploaded clip into per-utterance subclips
// using the transcription sidecar and stores each cut by content hash.
package segment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/701789262a/backend-dailychat/logger"
	"github.com/701789262a/backend-dailychat/observability"
	"github.com/701789262a/backend-dailychat/storage"
	"github.com/701789262a/backend-dailychat/transcription"
)

// DefaultPadEnd extends every cut so trailing phonemes are not clipped.
const DefaultPadEnd = 100 * time.Millisecond

// Subclip is one stored cut.
type Subclip struct {
	Hash         string  `json:"hash"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	NoSpeechProb float64 `json:"no_speech_prob"`
	Audio        []byte  `json:"-"`
}

// Metadata is the JSON persisted with the subclip record.
func (s Subclip) Metadata() string {
	b, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Result is a split clip. Duration is the clip length reported by the
// transcriber.
type Result struct {
	Subclips []Subclip
	Duration time.Duration
}

type Config struct {
	PadEnd time.Duration `yaml:"pad_end" mapstructure:"pad_end"`
	// MaxNoSpeechProb drops segments the model thinks are silence. Zero
	// keeps every segment.
	MaxNoSpeechProb float64 `yaml:"max_no_speech_prob" mapstructure:"max_no_speech_prob"`
	Language        string  `yaml:"language" mapstructure:"language"`
}

type Segmenter struct {
	cfg         Config
	transcriber transcription.Provider
	blobs       *storage.BlobStore
	log         *logger.Logger
}

func New(cfg Config, transcriber transcription.Provider, blobs *storage.BlobStore, log *logger.Logger) *Segmenter {
	if cfg.PadEnd <= 0 {
		cfg.PadEnd = DefaultPadEnd
	}
	return &Segmenter{cfg: cfg, transcriber: transcriber, blobs: blobs, log: log.WithComponent("segment")}
}

// Split cuts clip into subclips. Cuts with identical audio collapse into
// one subclip.
func (s *Segmenter) Split(ctx context.Context, clip []byte, fileName string) (_ *Result, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanSegment)
	defer func() { observability.EndSpan(span, err) }()

	resp, err := s.transcriber.Transcribe(ctx, transcription.Request{
		Audio:    clip,
		FileName: fileName,
		Language: s.cfg.Language,
		Cut:      true,
		PadEnd:   s.cfg.PadEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("segment: transcribe: %w", err)
	}

	seen := make(map[string]bool, len(resp.Segments))
	out := make([]Subclip, 0, len(resp.Segments))
	for i, seg := range resp.Segments {
		if len(seg.Audio) == 0 {
			s.log.WithContext(ctx).Warn("segment without audio", logger.Fields("index", i))
			continue
		}
		if s.cfg.MaxNoSpeechProb > 0 && seg.NoSpeechProb > s.cfg.MaxNoSpeechProb {
			continue
		}
		hash, err := s.blobs.Put(ctx, storage.KindSubclip, seg.Audio)
		if err != nil {
			return nil, fmt.Errorf("segment: store cut %d: %w", i, err)
		}
		if seen[hash] {
			continue
		}
		seen[hash] = true
		out = append(out, Subclip{
			Hash:         hash,
			Start:        seg.Start,
			End:          seg.End,
			Text:         seg.Text,
			NoSpeechProb: seg.NoSpeechProb,
			Audio:        seg.Audio,
		})
		s.log.WithContext(ctx).Debug("subclip stored", logger.Fields(logger.FieldSubclip, hash, "start", seg.Start, "end", seg.End))
	}
	return &Result{
		Subclips: out,
		Duration: time.Duration(resp.Duration * float64(time.Second)),
	}, nil
}
