package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stateloop/convopg/state"
)

// txContextKey is the context key for storing pgx.Tx
type txContextKey struct{}

// WithTx returns a new context carrying the given transaction. Store calls
// made with this context run inside the transaction.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext retrieves the transaction from context, or nil if not present
func TxFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// querier is a common interface for pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using PostgreSQL with pgx
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// getQuerier returns the transaction from context if present, otherwise the pool
func (s *PostgresStore) getQuerier(ctx context.Context) querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

// SaveSnapshot upserts the full conversation state keyed by session ID
func (s *PostgresStore) SaveSnapshot(ctx context.Context, cs *state.ConversationState) error {
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

	_, err = s.getQuerier(ctx).Exec(ctx, query, cs.SessionID, stateJSON, string(cs.Phase), cs.TurnCount)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot retrieves the conversation state for a session
func (s *PostgresStore) LoadSnapshot(ctx context.Context, sessionID string) (*state.ConversationState, error) {
	query := `
		SELECT state
		FROM convopg_snapshots
		WHERE session_id = $1
	`

	var stateJSON []byte
	err := s.getQuerier(ctx).QueryRow(ctx, query, sessionID).Scan(&stateJSON)
	if errors.Is(err, pgx.ErrNoRows) {
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
func (s *PostgresStore) DeleteSnapshot(ctx context.Context, sessionID string) error {
	query := `DELETE FROM convopg_snapshots WHERE session_id = $1`

	_, err := s.getQuerier(ctx).Exec(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// ListSessions returns all session IDs with a stored snapshot
func (s *PostgresStore) ListSessions(ctx context.Context) ([]string, error) {
	query := `
		SELECT session_id
		FROM convopg_snapshots
		ORDER BY updated_at DESC
	`

	rows, err := s.getQuerier(ctx).Query(ctx, query)
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
func (s *PostgresStore) SaveCompactionEvent(ctx context.Context, event *CompactionEvent) error {
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

	_, err = s.getQuerier(ctx).Exec(ctx, query,
		event.ID,
		event.SessionID,
		event.Strategy,
		event.OriginalTokens,
		event.CompactedTokens,
		event.MessagesRemoved,
		event.SummaryContent,
		event.PreservedMessageIDs,
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
func (s *PostgresStore) GetCompactionHistory(ctx context.Context, sessionID string) ([]*CompactionEvent, error) {
	query := `
		SELECT id, session_id, strategy, original_tokens, compacted_tokens,
		       messages_removed, summary_content, preserved_message_ids,
		       model_used, duration_ms, archived_messages, created_at
		FROM convopg_compaction_events
		WHERE session_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.getQuerier(ctx).Query(ctx, query, sessionID)
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
			&event.PreservedMessageIDs,
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

// Schema returns the DDL for the tables used by the store. Callers run it
// once during setup; the store never creates tables on its own.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS convopg_snapshots (
	session_id  TEXT PRIMARY KEY,
	state       JSONB NOT NULL,
	phase       TEXT NOT NULL,
	turn_count  INTEGER NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS convopg_compaction_events (
	id                    TEXT PRIMARY KEY,
	session_id            TEXT NOT NULL,
	strategy              TEXT NOT NULL,
	original_tokens       INTEGER NOT NULL,
	compacted_tokens      INTEGER NOT NULL,
	messages_removed      INTEGER NOT NULL,
	summary_content       TEXT NOT NULL DEFAULT '',
	preserved_message_ids TEXT[] NOT NULL DEFAULT '{}',
	model_used            TEXT NOT NULL DEFAULT '',
	duration_ms           BIGINT NOT NULL DEFAULT 0,
	archived_messages     JSONB NOT NULL DEFAULT '[]',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_convopg_compaction_events_session
	ON convopg_compaction_events (session_id, created_at);
`
}
