// Package convopg provides stateful conversation management for AI
// assistants, with automatic context-window compaction.
//
// ConvoPG is opinionated (Anthropic + PostgreSQL) and built around an
// immutable state core: every change to a conversation flows through a
// single dispatch pipeline (action, middleware, reducer, commit,
// subscribers), so message order, token accounting, and in-flight tool
// tracking stay consistent under concurrent streaming and tool execution.
//
// # Key Features
//
//   - Immutable conversation snapshots with exact token accounting
//   - Automatic context compaction with strategy selection (tool-context
//     preserving, topic summary, chronological)
//   - Tool system with a registry, per-invocation timeouts, and
//     completion-order result integration
//   - Streaming-first response handling
//   - PostgreSQL persistence for snapshots and compaction history
//   - Hooks for observability and debugging
//
// # Quick Start
//
// Create a conversation with required configuration:
//
//	client := anthropic.NewClient()
//	conv, err := convopg.New(
//	    convopg.Config{
//	        Client: &client,
//	        Model:  "claude-3-5-sonnet-20241022",
//	    },
//	    convopg.WithMaxContextTokens(200000),
//	    convopg.WithAutoCompaction(true),
//	)
//
// Add messages and let compaction run when the window fills:
//
//	st, err := conv.AddUserMessage(ctx, "Summarize the design doc")
//	fmt.Printf("window at %.0f%%\n", st.Window.Utilization()*100)
package convopg
