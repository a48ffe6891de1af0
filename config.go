package convopg

import (
	"fmt"
	"log"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/stateloop/convopg/compaction"
	"github.com/stateloop/convopg/state"
	"github.com/stateloop/convopg/storage"
	"github.com/stateloop/convopg/tool"
)

// ModelInfo contains model-specific parameters
type ModelInfo struct {
	MaxContextTokens int
	DefaultMaxTokens int
}

// KnownModels maps model IDs to their capabilities
var KnownModels = map[string]ModelInfo{
	// Claude 4 models
	"claude-sonnet-4-5-20250929": {MaxContextTokens: 200000, DefaultMaxTokens: 16384},
	"claude-opus-4-5-20251101":   {MaxContextTokens: 200000, DefaultMaxTokens: 16384},
	// Claude 3.5 models
	"claude-3-5-sonnet-20241022": {MaxContextTokens: 200000, DefaultMaxTokens: 8192},
	"claude-3-5-haiku-20241022":  {MaxContextTokens: 200000, DefaultMaxTokens: 8192},
	// Claude 3 models
	"claude-3-opus-20240229":  {MaxContextTokens: 200000, DefaultMaxTokens: 4096},
	"claude-3-haiku-20240307": {MaxContextTokens: 200000, DefaultMaxTokens: 4096},
}

// GetModelInfo returns model info, using sensible defaults for unknown models
func GetModelInfo(model string) ModelInfo {
	if info, ok := KnownModels[model]; ok {
		return info
	}
	return ModelInfo{MaxContextTokens: 200000, DefaultMaxTokens: 8192}
}

// Config holds the required configuration for a conversation.
//
// Example:
//
//	client := anthropic.NewClient()
//	conv, _ := convopg.New(convopg.Config{
//	    Client: &client,
//	    Model:  "claude-3-5-sonnet-20241022",
//	})
type Config struct {
	// Client is the Anthropic API client (required)
	Client *anthropic.Client

	// Model is the model ID to use (required)
	Model string

	// SystemPrompt is prepended to every API request (optional)
	SystemPrompt string
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Client == nil {
		return fmt.Errorf("%w: Anthropic client is required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: Model is required", ErrInvalidConfig)
	}
	return nil
}

// internalConfig holds the full conversation configuration including
// optional parameters
type internalConfig struct {
	// Required from Config
	client       *anthropic.Client
	model        string
	systemPrompt string

	// Generation parameters
	maxTokens int64

	// Context and compaction configuration
	maxContextTokens int
	autoCompaction   bool
	compactionCfg    compaction.Config

	// Dispatch pipeline configuration
	historyLimit int
	middleware   []state.Middleware
	subscribers  []state.Subscriber

	// Tool execution configuration
	tools       []tool.Tool
	toolTimeout time.Duration

	// Collaborator overrides, nil means the Anthropic-backed default
	summarizer compaction.Summarizer
	counter    compaction.TokenCounter

	// Persistence and observability
	store  storage.Store
	logger *log.Logger
}

// newInternalConfig creates a new internal config from the public Config
func newInternalConfig(cfg Config) *internalConfig {
	modelInfo := GetModelInfo(cfg.Model)

	compactionCfg := compaction.DefaultConfig()
	compactionCfg.SummarizerModel = cfg.Model

	return &internalConfig{
		client:           cfg.Client,
		model:            cfg.Model,
		systemPrompt:     cfg.SystemPrompt,
		maxTokens:        int64(modelInfo.DefaultMaxTokens),
		maxContextTokens: modelInfo.MaxContextTokens,
		autoCompaction:   true,
		compactionCfg:    compactionCfg,
		toolTimeout:      2 * time.Minute,
		logger:           log.Default(),
	}
}
