package compaction

import "fmt"

// Default thresholds. These are configurable policy defaults, not fixed
// behavior; no tuning methodology backs the exact numbers.
const (
	// DefaultTriggerThreshold is the utilization at which compaction activates
	DefaultTriggerThreshold = 0.85

	// DefaultTargetUtilization is the utilization compaction aims for
	DefaultTargetUtilization = 0.60

	// DefaultMinCompactionTokens is the floor below which compaction is
	// skipped even past the trigger ratio
	DefaultMinCompactionTokens = 10000

	// DefaultToolCallThreshold selects PreserveToolContext when exceeded
	DefaultToolCallThreshold = 10

	// DefaultTopicTransitionThreshold selects TopicSummary when exceeded
	DefaultTopicTransitionThreshold = 5

	// DefaultPreserveLastN is how many recent messages always survive compaction
	DefaultPreserveLastN = 10

	// DefaultMaxSummaryTokens caps the generated summary length
	DefaultMaxSummaryTokens = 2048
)

// Config holds compaction policy for one conversation
type Config struct {
	// TriggerThreshold activates compaction at this utilization (0.0-1.0)
	TriggerThreshold float64

	// TargetUtilization is the approximate utilization after compaction
	TargetUtilization float64

	// MinCompactionTokens skips compaction below this consumed-token floor
	MinCompactionTokens int

	// ToolCallThreshold selects PreserveToolContext above this invocation count
	ToolCallThreshold int

	// TopicTransitionThreshold selects TopicSummary above this transition count
	TopicTransitionThreshold int

	// PreserveLastN recent messages are always treated as critical
	PreserveLastN int

	// SummarizerModel is the model used for summary generation
	SummarizerModel string

	// MaxSummaryTokens caps the generated summary length
	MaxSummaryTokens int
}

// DefaultConfig returns the default compaction policy
func DefaultConfig() Config {
	return Config{
		TriggerThreshold:         DefaultTriggerThreshold,
		TargetUtilization:        DefaultTargetUtilization,
		MinCompactionTokens:      DefaultMinCompactionTokens,
		ToolCallThreshold:        DefaultToolCallThreshold,
		TopicTransitionThreshold: DefaultTopicTransitionThreshold,
		PreserveLastN:            DefaultPreserveLastN,
		MaxSummaryTokens:         DefaultMaxSummaryTokens,
	}
}

// Validate checks the configuration for internal consistency
func (c Config) Validate() error {
	if c.TriggerThreshold <= 0 || c.TriggerThreshold > 1 {
		return fmt.Errorf("%w: trigger threshold must be in (0, 1], got %v", ErrInvalidConfig, c.TriggerThreshold)
	}
	if c.TargetUtilization <= 0 || c.TargetUtilization >= c.TriggerThreshold {
		return fmt.Errorf("%w: target utilization must be in (0, trigger), got %v", ErrInvalidConfig, c.TargetUtilization)
	}
	if c.MinCompactionTokens < 0 {
		return fmt.Errorf("%w: minimum compaction tokens cannot be negative", ErrInvalidConfig)
	}
	if c.PreserveLastN < 0 {
		return fmt.Errorf("%w: preserve-last-n cannot be negative", ErrInvalidConfig)
	}
	if c.MaxSummaryTokens <= 0 {
		return fmt.Errorf("%w: max summary tokens must be positive", ErrInvalidConfig)
	}
	return nil
}
