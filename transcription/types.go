package transcription

import "time"

// Request holds parameters for a transcription call.
type Request struct {
	// Audio is the raw clip.
	Audio []byte `json:"-"`
	// FileName is sent with the audio part; backends may sniff the format
	// from its extension.
	FileName string `json:"file_name,omitempty"`
	// Language is the expected language (e.g. "en"); empty autodetects.
	Language string `json:"language,omitempty"`
	// Model overrides the backend's configured model.
	Model string `json:"model,omitempty"`
	// Cut asks the backend to return each segment's audio.
	Cut bool `json:"cut,omitempty"`
	// PadEnd extends every cut past the reported segment end.
	PadEnd time.Duration `json:"pad_end,omitempty"`
}

// Response holds the result of a transcription call.
type Response struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
	// Duration is the audio duration in seconds.
	Duration float64 `json:"duration,omitempty"`
	Language string  `json:"language,omitempty"`
}

// Segment is a time-aligned portion of the transcript.
type Segment struct {
	// Start and End are offsets in seconds.
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	NoSpeechProb float64 `json:"no_speech_prob,omitempty"`
	// Audio is the cut for this segment when the request asked for cuts.
	Audio []byte `json:"audio,omitempty"`
}

// Length returns the segment duration.
func (s Segment) Length() time.Duration {
	return time.Duration((s.End - s.Start) * float64(time.Second))
}
