// Package storage persists conversation snapshots and compaction history.
// Two implementations are provided: PostgresStore on pgx and SQLStore on
// database/sql with the pq driver.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/stateloop/convopg/state"
	"github.com/stateloop/convopg/types"
)

// ErrSnapshotNotFound indicates no snapshot exists for the session ID.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Store defines the persistence interface for conversations
type Store interface {
	// SaveSnapshot upserts the full conversation state keyed by session ID
	SaveSnapshot(ctx context.Context, s *state.ConversationState) error

	// LoadSnapshot retrieves the conversation state for a session.
	// Returns ErrSnapshotNotFound when the session has never been saved.
	LoadSnapshot(ctx context.Context, sessionID string) (*state.ConversationState, error)

	// DeleteSnapshot removes the stored state for a session
	DeleteSnapshot(ctx context.Context, sessionID string) error

	// ListSessions returns all session IDs with a stored snapshot,
	// most recently updated first
	ListSessions(ctx context.Context) ([]string, error)

	// SaveCompactionEvent records one compaction occurrence
	SaveCompactionEvent(ctx context.Context, event *CompactionEvent) error

	// GetCompactionHistory returns all compaction events for a session,
	// oldest first
	GetCompactionHistory(ctx context.Context, sessionID string) ([]*CompactionEvent, error)
}

// CompactionEvent records one context compaction occurrence
type CompactionEvent struct {
	ID                  string    `json:"id"`
	SessionID           string    `json:"session_id"`
	Strategy            string    `json:"strategy"`
	OriginalTokens      int       `json:"original_tokens"`
	CompactedTokens     int       `json:"compacted_tokens"`
	MessagesRemoved     int       `json:"messages_removed"`
	SummaryContent      string    `json:"summary_content,omitempty"`
	PreservedMessageIDs []string  `json:"preserved_message_ids"`
	ModelUsed           string    `json:"model_used,omitempty"`
	DurationMs          int64     `json:"duration_ms"`
	CreatedAt           time.Time `json:"created_at"`

	// ArchivedMessages holds the summarized-away messages so compaction
	// never destroys content irrecoverably
	ArchivedMessages []*types.Message `json:"archived_messages,omitempty"`
}
