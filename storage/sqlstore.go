package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/stateloop/convopg/state"
)

// SQLStore implements Store using database/sql with the pq driver. It is
// the choice for applications already holding a *sql.DB; PostgresStore on
// pgx is otherwise preferred.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a store over an existing database/sql connection
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// SaveSnapshot upserts the full conversation state keyed by session ID
func (s *SQLStore) SaveSnapshot(ctx context.Context, cs *state.ConversationState) error {
	if cs == nil {
		return fmt.Errorf("state is required")
	}
	if cs.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}

	stateJSON, err := json.Marshal(cs)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := `
		INSERT INTO convopg_snapshots (session_id, state, phase, turn_count, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (session_id)
		DO UPDATE SET state = $2, phase = $3, turn_count = $4, updated_at = NOW()
	`

	_, err = s.db.ExecContext(ctx, query, cs.SessionID, stateJSON, string(cs.Phase), cs.TurnCount)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot retrieves the conversation state for a session
func (s *SQLStore) LoadSnapshot(ctx context.Context, sessionID string) (*state.ConversationState, error) {
	query := `
		SELECT state
		FROM convopg_snapshots
		WHERE session_id = $1
	`

	var stateJSON []byte
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var cs state.ConversationState
	if err := json.Unmarshal(stateJSON, &cs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &cs, nil
}

// DeleteSnapshot removes the stored state for a session
func (s *SQLStore) DeleteSnapshot(ctx context.Context, sessionID string) error {
	query := `DELETE FROM convopg_snapshots WHERE session_id = $1`

	_, err := s.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// ListSessions returns all session IDs with a stored snapshot
func (s *SQLStore) ListSessions(ctx context.Context) ([]string, error) {
	query := `
		SELECT session_id
		FROM convopg_snapshots
		ORDER BY updated_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		sessions = append(sessions, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// SaveCompactionEvent records one compaction occurrence
func (s *SQLStore) SaveCompactionEvent(ctx context.Context, event *CompactionEvent) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if event.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	archivedJSON, err := json.Marshal(event.ArchivedMessages)
	if err != nil {
		return fmt.Errorf("failed to marshal archived messages: %w", err)
	}

	query := `
		INSERT INTO convopg_compaction_events
			(id, session_id, strategy, original_tokens, compacted_tokens,
			 messages_removed, summary_content, preserved_message_ids,
			 model_used, duration_ms, archived_messages, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	`

	// Use pq.Array for the PostgreSQL array parameter
	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		event.SessionID,
		event.Strategy,
		event.OriginalTokens,
		event.CompactedTokens,
		event.MessagesRemoved,
		event.SummaryContent,
		pq.Array(event.PreservedMessageIDs),
		event.ModelUsed,
		event.DurationMs,
		archivedJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save compaction event: %w", err)
	}
	return nil
}

// GetCompactionHistory returns all compaction events for a session
func (s *SQLStore) GetCompactionHistory(ctx context.Context, sessionID string) ([]*CompactionEvent, error) {
	query := `
		SELECT id, session_id, strategy, original_tokens, compacted_tokens,
		       messages_removed, summary_content, preserved_message_ids,
		       model_used, duration_ms, archived_messages, created_at
		FROM convopg_compaction_events
		WHERE session_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get compaction history: %w", err)
	}
	defer rows.Close()

	var events []*CompactionEvent
	for rows.Next() {
		var event CompactionEvent
		var archivedJSON []byte
		err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&event.Strategy,
			&event.OriginalTokens,
			&event.CompactedTokens,
			&event.MessagesRemoved,
			&event.SummaryContent,
			pq.Array(&event.PreservedMessageIDs),
			&event.ModelUsed,
			&event.DurationMs,
			&archivedJSON,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan compaction event: %w", err)
		}
		if len(archivedJSON) > 0 {
			if err := json.Unmarshal(archivedJSON, &event.ArchivedMessages); err != nil {
				return nil, fmt.Errorf("failed to unmarshal archived messages: %w", err)
			}
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate compaction events: %w", err)
	}
	return events, nil
}
