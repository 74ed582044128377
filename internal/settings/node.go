package settings

import (
	"fmt"

	"github.com/701789262a/backend-dailychat/config"
	"github.com/701789262a/backend-dailychat/database"
	"github.com/701789262a/backend-dailychat/discovery"
	"github.com/701789262a/backend-dailychat/internal/identify"
	"github.com/701789262a/backend-dailychat/internal/notify"
	"github.com/701789262a/backend-dailychat/internal/segment"
	"github.com/701789262a/backend-dailychat/internal/verify"
	"github.com/701789262a/backend-dailychat/internal/worker"
	"github.com/701789262a/backend-dailychat/kafka"
	"github.com/701789262a/backend-dailychat/observability"
	"github.com/701789262a/backend-dailychat/server"
	"github.com/701789262a/backend-dailychat/storage"
	"github.com/701789262a/backend-dailychat/transcription/whisper"
)

// Batch strategies.
const (
	StrategyRecent   = "recent"
	StrategyWeighted = "weighted"
)

type QueueConfig struct {
	Capacity int `yaml:"capacity" mapstructure:"capacity"`
}

// TranscriptionConfig picks the segmentation backend by registry name.
type TranscriptionConfig struct {
	Provider string         `yaml:"provider" mapstructure:"provider"`
	Whisper  whisper.Config `yaml:"whisper" mapstructure:"whisper"`
}

// BatchConfig picks and tunes the reference batch strategy. Weight is
// only read by the weighted strategy.
type BatchConfig struct {
	Strategy    string  `yaml:"strategy" mapstructure:"strategy"`
	PerSpeaker  int     `yaml:"per_speaker" mapstructure:"per_speaker"`
	WeightedMax int     `yaml:"weighted_max" mapstructure:"weighted_max"`
	Floor       float64 `yaml:"floor" mapstructure:"floor"`
}

type KafkaNotifyConfig struct {
	Enabled      bool `yaml:"enabled" mapstructure:"enabled"`
	kafka.Config `yaml:",inline" mapstructure:",squash"`
}

type NtfyNotifyConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	notify.NtfyConfig `yaml:",inline" mapstructure:",squash"`
}

// NotifyConfig enables the decision sinks. Both are off by default.
type NotifyConfig struct {
	Kafka KafkaNotifyConfig `yaml:"kafka" mapstructure:"kafka"`
	Ntfy  NtfyNotifyConfig  `yaml:"ntfy" mapstructure:"ntfy"`
}

// NodeConfig configures a worker node.
type NodeConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Discovery     discovery.Config     `yaml:"discovery" mapstructure:"discovery"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	Storage       storage.Config       `yaml:"storage" mapstructure:"storage"`
	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Queue         QueueConfig          `yaml:"queue" mapstructure:"queue"`
	Transcription TranscriptionConfig  `yaml:"transcription" mapstructure:"transcription"`
	Segment       segment.Config       `yaml:"segment" mapstructure:"segment"`
	Verify        verify.Config        `yaml:"verify" mapstructure:"verify"`
	Identify      identify.Config      `yaml:"identify" mapstructure:"identify"`
	Batch         BatchConfig          `yaml:"batch" mapstructure:"batch"`
	Notify        NotifyConfig         `yaml:"notify" mapstructure:"notify"`

	// Release receives /unbusy once a job finishes: the dispatcher, or
	// the registry relay in front of it.
	Release Link `yaml:"release" mapstructure:"release"`

	// AdvertiseAddress is the ip the dispatcher knows this node by. Empty
	// lets the receiver use the connection's remote address.
	AdvertiseAddress string `yaml:"advertise_address" mapstructure:"advertise_address"`
}

func (c *NodeConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "node"
	}
	c.ServiceConfig.ApplyDefaults()
	if c.Server.Port == 0 {
		c.Server.Port = DefaultNodePort
	}
	c.Server.ApplyDefaults()
	c.Discovery.ApplyDefaults()
	c.Observability.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Database.ApplyDefaults()
	if c.Queue.Capacity <= 0 {
		c.Queue.Capacity = worker.DefaultQueueCapacity
	}
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = whisper.ProviderName
	}
	if c.Segment.PadEnd <= 0 {
		c.Segment.PadEnd = segment.DefaultPadEnd
	}
	c.Verify.ApplyDefaults()
	c.Identify.ApplyDefaults()
	if c.Batch.Strategy == "" {
		c.Batch.Strategy = StrategyRecent
	}
	if c.Batch.PerSpeaker <= 0 {
		c.Batch.PerSpeaker = identify.DefaultRecentPerSpeaker
	}
	if c.Batch.WeightedMax <= 0 {
		c.Batch.WeightedMax = identify.DefaultWeightedMax
	}
	if c.Notify.Kafka.Enabled {
		c.Notify.Kafka.ApplyDefaults()
	}
	if c.Notify.Ntfy.Enabled {
		c.Notify.Ntfy.ApplyDefaults()
	}
	c.Release.applyDefaults(discovery.ServiceDispatcher)
}

func (c *NodeConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Discovery.Validate(); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Identify.Validate(); err != nil {
		return err
	}
	switch c.Batch.Strategy {
	case StrategyRecent, StrategyWeighted:
	default:
		return fmt.Errorf("batch.strategy: unknown strategy %q", c.Batch.Strategy)
	}
	if c.Batch.Floor < 0 || c.Batch.Floor > 1 {
		return fmt.Errorf("batch.floor: must be in [0,1], got %v", c.Batch.Floor)
	}
	if c.Segment.MaxNoSpeechProb < 0 || c.Segment.MaxNoSpeechProb > 1 {
		return fmt.Errorf("segment.max_no_speech_prob: must be in [0,1], got %v", c.Segment.MaxNoSpeechProb)
	}
	if c.Notify.Kafka.Enabled {
		if err := c.Notify.Kafka.Validate(); err != nil {
			return fmt.Errorf("notify.kafka: %w", err)
		}
	}
	if c.Notify.Ntfy.Enabled && c.Notify.Ntfy.URL == "" {
		return fmt.Errorf("notify.ntfy.url is required when ntfy is enabled")
	}
	return c.Release.validate("release")
}

// Strategy builds the configured batch strategy over refs.
func (c *NodeConfig) Strategy(refs identify.ReferenceLister) identify.BatchStrategy {
	if c.Batch.Strategy == StrategyWeighted {
		return identify.ScoreWeighted{Refs: refs, Max: c.Batch.WeightedMax, Floor: c.Batch.Floor}
	}
	return identify.RecentPerSpeaker{Refs: refs, K: c.Batch.PerSpeaker}
}
