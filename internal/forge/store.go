// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package forge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/teradata-labs/loom/internal/sqlitedriver"
)

// Store persists Forge sessions to SQLite so a deliberation survives a
// process restart and can be resumed or inspected after the fact. Uses
// WAL mode for concurrent read/write access, matching the scheduler
// store's pattern.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens (creating if necessary) a SQLite-backed session store
// at dbPath.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", dbPath))
	if err != nil {
		return nil, fmt.Errorf("forge: open session store: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("forge: init session store schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS forge_sessions (
		id TEXT PRIMARY KEY,
		topic_json TEXT NOT NULL,
		config_json TEXT NOT NULL,
		status TEXT NOT NULL,
		fail_reason TEXT,
		usage_input INTEGER DEFAULT 0,
		usage_output INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS forge_rounds (
		session_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		kind TEXT NOT NULL,
		round_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, idx),
		FOREIGN KEY (session_id) REFERENCES forge_sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_forge_rounds_session ON forge_rounds(session_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveSession upserts a session's metadata and replaces its round
// history. Rounds are stored as one JSON row each rather than a single
// blob, so a future reader can page or filter by kind without
// unmarshalling the whole session.
func (s *Store) SaveSession(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	topicJSON, err := json.Marshal(sess.Topic)
	if err != nil {
		return fmt.Errorf("forge: marshal topic: %w", err)
	}
	configJSON, err := json.Marshal(sess.Config)
	if err != nil {
		return fmt.Errorf("forge: marshal config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("forge: begin save session: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO forge_sessions (id, topic_json, config_json, status, fail_reason, usage_input, usage_output, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			topic_json = excluded.topic_json,
			config_json = excluded.config_json,
			status = excluded.status,
			fail_reason = excluded.fail_reason,
			usage_input = excluded.usage_input,
			usage_output = excluded.usage_output,
			updated_at = excluded.updated_at
	`, sess.ID, string(topicJSON), string(configJSON), string(sess.Status), sess.FailReason,
		sess.Usage.Input, sess.Usage.Output, sess.CreatedAt.Unix(), sess.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("forge: upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM forge_rounds WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("forge: clear rounds: %w", err)
	}
	for i, r := range sess.Rounds {
		roundJSON, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("forge: marshal round %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO forge_rounds (session_id, idx, kind, round_json, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, sess.ID, i, string(r.Kind), string(roundJSON), r.CreatedAt.Unix()); err != nil {
			return fmt.Errorf("forge: insert round %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// LoadSession reconstructs a session and its round history by ID.
func (s *Store) LoadSession(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT topic_json, config_json, status, fail_reason, usage_input, usage_output, created_at, updated_at
		FROM forge_sessions WHERE id = ?
	`, id)

	var (
		topicJSON, configJSON, status string
		failReason                    sql.NullString
		usageIn, usageOut             int
		createdAt, updatedAt          int64
	)
	if err := row.Scan(&topicJSON, &configJSON, &status, &failReason, &usageIn, &usageOut, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("forge: session not found: %s", id)
		}
		return nil, fmt.Errorf("forge: load session: %w", err)
	}

	sess := &Session{
		ID:        id,
		Status:    Status(status),
		Usage:     TokenUsage{Input: usageIn, Output: usageOut},
		CreatedAt: time.Unix(createdAt, 0),
		UpdatedAt: time.Unix(updatedAt, 0),
	}
	if failReason.Valid {
		sess.FailReason = failReason.String
	}
	if err := json.Unmarshal([]byte(topicJSON), &sess.Topic); err != nil {
		return nil, fmt.Errorf("forge: unmarshal topic: %w", err)
	}
	if err := json.Unmarshal([]byte(configJSON), &sess.Config); err != nil {
		return nil, fmt.Errorf("forge: unmarshal config: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT round_json FROM forge_rounds WHERE session_id = ? ORDER BY idx ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("forge: query rounds: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var roundJSON string
		if err := rows.Scan(&roundJSON); err != nil {
			return nil, fmt.Errorf("forge: scan round: %w", err)
		}
		var r Round
		if err := json.Unmarshal([]byte(roundJSON), &r); err != nil {
			return nil, fmt.Errorf("forge: unmarshal round: %w", err)
		}
		sess.Rounds = append(sess.Rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("forge: iterate rounds: %w", err)
	}

	return sess, nil
}

// ListSessionIDs returns every session ID in the store, most recently
// updated first.
func (s *Store) ListSessionIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM forge_sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("forge: list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("forge: scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CompactSessions deletes terminal (converged/stopped/failed) sessions
// last updated before the cutoff, along with their rounds via the
// foreign key cascade. Active/creating sessions are never touched
// regardless of age. Returns the number of sessions removed.
func (s *Store) CompactSessions(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("forge: begin compact: %w", err)
	}
	defer tx.Rollback()

	// SQLite only cascades FK deletes when foreign_keys is pragma'd on
	// for the connection, which this store does not assume; clear
	// rounds explicitly first.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM forge_rounds WHERE session_id IN (
			SELECT id FROM forge_sessions WHERE status IN (?, ?, ?) AND updated_at < ?
		)
	`, string(StatusConverged), string(StatusStopped), string(StatusFailed), cutoff.Unix()); err != nil {
		return 0, fmt.Errorf("forge: compact rounds: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM forge_sessions
		WHERE status IN (?, ?, ?) AND updated_at < ?
	`, string(StatusConverged), string(StatusStopped), string(StatusFailed), cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("forge: compact sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("forge: compact sessions rows affected: %w", err)
	}

	return int(n), tx.Commit()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
