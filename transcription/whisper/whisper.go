package whisper

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/701789262a/backend-dailychat/httpclient"
	"github.com/701789262a/backend-dailychat/transcription"
)

const (
	// ProviderName is the registered name for the Whisper provider.
	ProviderName = "whisper"

	defaultWhisperURL     = "http://localhost:8387"
	defaultWhisperModel   = "base"
	defaultWhisperTimeout = 120 * time.Second
)

// Config holds configuration for the Whisper sidecar.
type Config struct {
	URL      string        `yaml:"url" mapstructure:"url"`
	Model    string        `yaml:"model" mapstructure:"model"`
	Language string        `yaml:"language" mapstructure:"language"`
	Device   string        `yaml:"device" mapstructure:"device"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Provider implements transcription.Provider against a faster-whisper
// HTTP sidecar.
type Provider struct {
	cfg    Config
	client *httpclient.Client
}

// NewProvider creates a Whisper provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.URL == "" {
		cfg.URL = defaultWhisperURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultWhisperModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultWhisperTimeout
	}
	client, err := httpclient.New(httpclient.Config{BaseURL: cfg.URL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("whisper client: %w", err)
	}
	return &Provider{cfg: cfg, client: client}, nil
}

// Factory builds Providers from a generic config map.
func Factory() func(cfg map[string]any) (transcription.Provider, error) {
	return func(cfg map[string]any) (transcription.Provider, error) {
		var wc Config
		if v, ok := cfg["url"].(string); ok {
			wc.URL = v
		}
		if v, ok := cfg["model"].(string); ok {
			wc.Model = v
		}
		if v, ok := cfg["language"].(string); ok {
			wc.Language = v
		}
		if v, ok := cfg["device"].(string); ok {
			wc.Device = v
		}
		if v, ok := cfg["timeout"].(time.Duration); ok {
			wc.Timeout = v
		}
		return NewProvider(wc)
	}
}

func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks that the sidecar answers its health endpoint.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	resp, err := p.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
	return err == nil && resp.StatusCode == http.StatusOK
}

// Transcribe posts the audio to /transcribe and maps the sidecar reply.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("whisper: empty audio")
	}
	fields := map[string]string{"model": p.cfg.Model}
	if req.Model != "" {
		fields["model"] = req.Model
	}
	if lang := firstNonEmpty(req.Language, p.cfg.Language); lang != "" {
		fields["language"] = lang
	}
	if p.cfg.Device != "" {
		fields["device"] = p.cfg.Device
	}
	if req.Cut {
		fields["cut"] = "true"
		fields["pad_ms"] = strconv.FormatInt(req.PadEnd.Milliseconds(), 10)
	}
	fileName := req.FileName
	if fileName == "" {
		fileName = "audio.wav"
	}

	resp, err := p.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/transcribe",
		Body: &httpclient.MultipartBody{
			Fields: fields,
			Files: []httpclient.FileField{{
				FieldName:   "audio",
				FileName:    fileName,
				ContentType: "audio/wav",
				Data:        req.Audio,
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}

	var result whisperResponse
	if err := resp.JSON(&result); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	return toResponse(&result), nil
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
}

type whisperSegment struct {
	Text         string  `json:"text"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	NoSpeechProb float64 `json:"no_speech_prob"`
	// Audio is base64 in JSON and decodes straight into bytes.
	Audio []byte `json:"audio"`
}

func toResponse(resp *whisperResponse) *transcription.Response {
	segments := make([]transcription.Segment, len(resp.Segments))
	for i, seg := range resp.Segments {
		segments[i] = transcription.Segment{
			Start:        seg.Start,
			End:          seg.End,
			Text:         seg.Text,
			NoSpeechProb: seg.NoSpeechProb,
			Audio:        seg.Audio,
		}
	}
	var duration float64
	if n := len(resp.Segments); n > 0 {
		duration = resp.Segments[n-1].End
	}
	return &transcription.Response{
		Text:     resp.Text,
		Segments: segments,
		Duration: duration,
		Language: resp.Language,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
