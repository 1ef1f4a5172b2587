package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"hooker/pkg/api"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// ErrNotFound is returned by deletes that match no row.
var ErrNotFound = errors.New("not found")

// DefaultListLimit caps ListEvents when no limit is given.
const DefaultListLimit = 50

// ArchivedEvent is an event received live, with the topic it arrived on.
type ArchivedEvent struct {
	api.Event
	Topic      string    `json:"topic"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Consumer is a relay client. Consumers authenticate with tokens and only
// receive messages matching one of their patterns.
type Consumer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	TokenHash string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	Patterns  []string  `json:"patterns"`
}

// EventFilter selects archived events, newest first.
type EventFilter struct {
	HookID string
	// Before excludes events at or after this ms timestamp when non-zero.
	Before int64
	Limit  int
}

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; the relay writes from broker callbacks.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			hook_id TEXT NOT NULL,
			topic TEXT NOT NULL,
			method TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			querystring TEXT NOT NULL DEFAULT '',
			headers TEXT,
			body TEXT,
			content_type TEXT,
			ip TEXT NOT NULL DEFAULT '',
			bookmarked INTEGER NOT NULL DEFAULT 0,
			timestamp INTEGER NOT NULL,
			received_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_hook_ts ON events(hook_id, timestamp DESC);`,

		`CREATE TABLE IF NOT EXISTS forwards (
			id TEXT PRIMARY KEY,
			hook_id TEXT NOT NULL,
			event_id TEXT NOT NULL,
			forward_rule_id TEXT NOT NULL DEFAULT '',
			target_url TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			status_updated_at INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_forwards_event ON forwards(event_id);`,

		`CREATE TABLE IF NOT EXISTS consumers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			token_hash TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			patterns TEXT DEFAULT ''
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_consumers_token ON consumers(token_hash);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to init schema (query: %s): %w", q, err)
		}
	}
	return nil
}

// HashString returns the SHA256 hex digest of input.
func HashString(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// GenerateToken returns a new consumer token: 32 random bytes, hex encoded.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Event Methods

// SaveEvent archives ev. A repeated id replaces the earlier row.
func (s *Store) SaveEvent(ctx context.Context, topic string, ev api.Event) error {
	query := `INSERT OR REPLACE INTO events
		(id, hook_id, topic, method, path, querystring, headers, body, content_type, ip, bookmarked, timestamp, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var headers *string
	if len(ev.Headers) > 0 {
		h := string(ev.Headers)
		headers = &h
	}
	_, err := s.db.ExecContext(ctx, query,
		ev.ID, ev.HookID, topic, ev.Method, ev.Path, ev.Querystring,
		headers, ev.Body, ev.ContentType, ev.IP, ev.Bookmarked, ev.Timestamp, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

const eventColumns = `id, hook_id, topic, method, path, querystring, headers, body, content_type, ip, bookmarked, timestamp, received_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*ArchivedEvent, error) {
	var (
		e       ArchivedEvent
		headers sql.NullString
		body    sql.NullString
		ctype   sql.NullString
	)
	err := row.Scan(&e.ID, &e.HookID, &e.Topic, &e.Method, &e.Path, &e.Querystring,
		&headers, &body, &ctype, &e.IP, &e.Bookmarked, &e.Timestamp, &e.ReceivedAt)
	if err != nil {
		return nil, err
	}
	if headers.Valid {
		e.Headers = json.RawMessage(headers.String)
	}
	if body.Valid {
		e.Body = &body.String
	}
	if ctype.Valid {
		e.ContentType = &ctype.String
	}
	return &e, nil
}

// GetEvent returns the archived event, or nil when there is none.
func (s *Store) GetEvent(ctx context.Context, id string) (*ArchivedEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	e, err := scanEvent(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// ListEvents returns archived events, newest first.
func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]ArchivedEvent, error) {
	var (
		where []string
		args  []any
	)
	if f.HookID != "" {
		where = append(where, "hook_id = ?")
		args = append(args, f.HookID)
	}
	if f.Before > 0 {
		where = append(where, "timestamp < ?")
		args = append(args, f.Before)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []ArchivedEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// CountEvents counts archived events of one hook, or of all hooks when
// hookID is empty.
func (s *Store) CountEvents(ctx context.Context, hookID string) (int, error) {
	query := `SELECT COUNT(*) FROM events`
	var args []any
	if hookID != "" {
		query += ` WHERE hook_id = ?`
		args = append(args, hookID)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// DeleteEvent removes an event and its forwards.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM forwards WHERE event_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete forwards: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteHookEvents removes everything archived for a hook and reports how
// many events went.
func (s *Store) DeleteHookEvents(ctx context.Context, hookID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE hook_id = ?`, hookID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete hook events: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM forwards WHERE hook_id = ?`, hookID); err != nil {
		return 0, fmt.Errorf("failed to delete hook forwards: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Forward Methods

// SaveForward records the latest known state of a forward.
func (s *Store) SaveForward(ctx context.Context, f api.Forward) error {
	query := `INSERT INTO forwards
		(id, hook_id, event_id, forward_rule_id, target_url, status, timestamp, status_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			status_updated_at = excluded.status_updated_at`
	_, err := s.db.ExecContext(ctx, query,
		f.ID, f.HookID, f.EventID, f.ForwardRuleID, f.TargetURL, string(f.Status), f.Timestamp, f.StatusUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save forward: %w", err)
	}
	return nil
}

// ListForwards returns the forwards of an event, oldest first.
func (s *Store) ListForwards(ctx context.Context, eventID string) ([]api.Forward, error) {
	query := `SELECT id, hook_id, event_id, forward_rule_id, target_url, status, timestamp, status_updated_at
		FROM forwards WHERE event_id = ? ORDER BY timestamp ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list forwards: %w", err)
	}
	defer rows.Close()

	var forwards []api.Forward
	for rows.Next() {
		var (
			f       api.Forward
			status  string
			updated sql.NullInt64
		)
		if err := rows.Scan(&f.ID, &f.HookID, &f.EventID, &f.ForwardRuleID, &f.TargetURL, &status, &f.Timestamp, &updated); err != nil {
			return nil, err
		}
		f.Status = api.ForwardStatus(status)
		if updated.Valid {
			f.StatusUpdatedAt = &updated.Int64
		}
		forwards = append(forwards, f)
	}
	return forwards, rows.Err()
}

// Consumer Methods

func (s *Store) CreateConsumer(ctx context.Context, name, token string, patterns []string) (*Consumer, error) {
	// Only the hash is stored.
	tokenHash := HashString(token)

	query := `INSERT INTO consumers (name, token_hash, patterns, created_at) VALUES (?, ?, ?, ?)`
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, query, name, tokenHash, joinPatterns(patterns), now)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return &Consumer{
		ID:        id,
		Name:      name,
		TokenHash: tokenHash,
		Patterns:  patterns,
		CreatedAt: now,
	}, nil
}

// GetConsumerByToken hashes token and looks the consumer up, returning nil
// when the token is unknown.
func (s *Store) GetConsumerByToken(ctx context.Context, token string) (*Consumer, error) {
	hash := HashString(token)
	query := `SELECT id, name, created_at, patterns FROM consumers WHERE token_hash = ?`
	var (
		c        Consumer
		patterns string
	)
	err := s.db.QueryRowContext(ctx, query, hash).Scan(&c.ID, &c.Name, &c.CreatedAt, &patterns)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.TokenHash = hash
	c.Patterns = splitPatterns(patterns)
	return &c, nil
}

func (s *Store) ListConsumers(ctx context.Context) ([]Consumer, error) {
	query := `SELECT id, name, created_at, patterns FROM consumers ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list consumers: %w", err)
	}
	defer rows.Close()

	var consumers []Consumer
	for rows.Next() {
		var (
			c        Consumer
			patterns string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &patterns); err != nil {
			return nil, err
		}
		c.Patterns = splitPatterns(patterns)
		consumers = append(consumers, c)
	}
	return consumers, rows.Err()
}

// DeleteConsumer removes a consumer by ID.
func (s *Store) DeleteConsumer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM consumers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete consumer: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("consumer %d: %w", id, ErrNotFound)
	}
	return nil
}

// Patterns are stored comma-separated. Hooker topics never contain commas.
func joinPatterns(p []string) string {
	return strings.Join(p, ",")
}

func splitPatterns(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
