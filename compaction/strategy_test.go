package compaction

import "testing"

func TestSelectStrategy(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name        string
		tools       int
		transitions int
		want        Strategy
	}{
		{"quiet conversation", 0, 0, StrategyChronological},
		{"at tool threshold", cfg.ToolCallThreshold, 0, StrategyChronological},
		{"past tool threshold", cfg.ToolCallThreshold + 1, 0, StrategyPreserveToolContext},
		{"past topic threshold", 0, cfg.TopicTransitionThreshold + 1, StrategyTopicSummary},
		{"tools win over topics", cfg.ToolCallThreshold + 1, cfg.TopicTransitionThreshold + 1, StrategyPreserveToolContext},
		{"at topic threshold", 0, cfg.TopicTransitionThreshold, StrategyChronological},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Analysis{ToolInvocations: tt.tools, TopicTransitions: tt.transitions}
			if got := SelectStrategy(a, cfg); got != tt.want {
				t.Errorf("SelectStrategy() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStrategyIsValid(t *testing.T) {
	for _, s := range []Strategy{StrategyPreserveToolContext, StrategyTopicSummary, StrategyChronological} {
		if !s.IsValid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if Strategy("aggressive").IsValid() {
		t.Error("unknown strategy should not be valid")
	}
}
