// Package store is the durable record of every item the bot has observed
// and how it was handled. It is the single source of truth shared by the
// scanner, reply monitor and publisher.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"debatebot/internal/platform"
)

// ErrNotFound is returned when an item identifier was never recorded.
var ErrNotFound = errors.New("store: item not found")

type Status string

const (
	StatusSeen      Status = "seen"
	StatusQueued    Status = "queued"
	StatusResponded Status = "responded"
	StatusFailed    Status = "failed"
)

// Record is the persisted handling outcome for one item.
type Record struct {
	ItemID     string
	Subreddit  string
	Author     string
	Title      string
	Body       string
	Status     Status
	FailReason string
	Response   string
	ResponseAt time.Time // zero until a response is recorded
	CreatedAt  time.Time
}

type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			item_id TEXT UNIQUE NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			subreddit TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'seen',
			fail_reason TEXT NOT NULL DEFAULT '',
			item_created_at TEXT NOT NULL,
			llm_response TEXT,
			response_timestamp TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_status ON items(status)`,
		`CREATE INDEX IF NOT EXISTS idx_items_responded ON items(response_timestamp)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			post_id TEXT NOT NULL,
			comment_id TEXT UNIQUE NOT NULL,
			comment_text TEXT NOT NULL,
			posted_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id)`,
		`CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			root_id TEXT NOT NULL,
			speaker TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_root ON turns(root_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// RecordSeen inserts a seen record for the item. It returns false without
// modifying anything when the item identifier already exists; the
// check-and-insert is a single statement, so two racing scan cycles cannot
// both observe the item as new.
func (s *Store) RecordSeen(item platform.Item) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`INSERT INTO items
		(item_id, parent_id, subreddit, title, body, author, status, item_created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO NOTHING`,
		item.ID, item.ParentID, item.Subreddit, item.Title, item.Body,
		item.Author, string(StatusSeen), item.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("record seen %s: %w", item.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record seen %s: %w", item.ID, err)
	}
	return n > 0, nil
}

// MarkQueued transitions an item to the queued status once it has been
// handed to the work queue.
func (s *Store) MarkQueued(itemID string) error {
	return s.updateStatus(itemID, StatusQueued, "")
}

// RecordResponse stores the generated response and marks the item
// responded. Returns ErrNotFound if the item was never recorded as seen.
func (s *Store) RecordResponse(itemID, text string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE items
		SET status = ?, llm_response = ?, response_timestamp = ?, fail_reason = ''
		WHERE item_id = ?`,
		string(StatusResponded), text, ts.UTC().Format(time.RFC3339Nano), itemID)
	if err != nil {
		return fmt.Errorf("record response %s: %w", itemID, err)
	}
	return checkFound(res, itemID)
}

// RecordFailure marks the item failed. Failures are terminal: the item is
// never retried and the record is kept as an audit trail.
func (s *Store) RecordFailure(itemID, reason string) error {
	return s.updateStatus(itemID, StatusFailed, reason)
}

func (s *Store) updateStatus(itemID string, status Status, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE items SET status = ?, fail_reason = ? WHERE item_id = ?`,
		string(status), reason, itemID)
	if err != nil {
		return fmt.Errorf("update status %s: %w", itemID, err)
	}
	return checkFound(res, itemID)
}

func checkFound(res sql.Result, itemID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", itemID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}
	return nil
}

// Exists reports whether the item identifier has been recorded.
func (s *Store) Exists(itemID string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM items WHERE item_id = ?`, itemID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", itemID, err)
	}
	return true, nil
}

// Get returns the record for one item, or ErrNotFound.
func (s *Store) Get(itemID string) (Record, error) {
	row := s.db.QueryRow(`SELECT item_id, subreddit, author, title, body,
			status, fail_reason, llm_response, response_timestamp, created_at
		FROM items WHERE item_id = ?`, itemID)

	var r Record
	var status string
	var response, respTS sql.NullString
	var createdAt string
	err := row.Scan(&r.ItemID, &r.Subreddit, &r.Author, &r.Title, &r.Body,
		&status, &r.FailReason, &response, &respTS, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %s: %w", itemID, err)
	}
	r.Status = Status(status)
	r.Response = response.String
	if respTS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, respTS.String); err == nil {
			r.ResponseAt = t
		}
	}
	if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
		r.CreatedAt = t
	}
	return r, nil
}

// FetchRecent returns the n most recently responded items, newest response
// first. Used for introspection, not correctness.
func (s *Store) FetchRecent(n int) ([]Record, error) {
	rows, err := s.db.Query(`SELECT item_id, subreddit, author, title, body,
			status, fail_reason, llm_response, response_timestamp, created_at
		FROM items
		WHERE llm_response IS NOT NULL
		ORDER BY response_timestamp DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("fetch recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var status string
		var response, respTS sql.NullString
		var createdAt string
		if err := rows.Scan(&r.ItemID, &r.Subreddit, &r.Author, &r.Title, &r.Body,
			&status, &r.FailReason, &response, &respTS, &createdAt); err != nil {
			return nil, fmt.Errorf("fetch recent scan: %w", err)
		}
		r.Status = Status(status)
		r.Response = response.String
		if respTS.Valid {
			if t, err := time.Parse(time.RFC3339Nano, respTS.String); err == nil {
				r.ResponseAt = t
			}
		}
		if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
			r.CreatedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountByStatus returns how many items carry each status.
func (s *Store) CountByStatus() (map[Status]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	out := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("count by status scan: %w", err)
		}
		out[Status(status)] = n
	}
	return out, rows.Err()
}

// SaveComment records a comment the bot posted, keyed by the comment's own
// identifier under the post it belongs to.
func (s *Store) SaveComment(postID, commentID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO comments (post_id, comment_id, comment_text)
		VALUES (?, ?, ?)
		ON CONFLICT(comment_id) DO NOTHING`, postID, commentID, text)
	if err != nil {
		return fmt.Errorf("save comment %s: %w", commentID, err)
	}
	return nil
}

// HasCommented reports whether the bot has posted any comment under postID.
func (s *Store) HasCommented(postID string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM comments WHERE post_id = ? LIMIT 1`, postID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has commented %s: %w", postID, err)
	}
	return true, nil
}

// SaveTurn appends one conversation turn to the durable log. The log
// outlives the in-memory conversation: retired conversations keep their
// history here.
func (s *Store) SaveTurn(rootID, speaker, content string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO turns (root_id, speaker, content, created_at)
		VALUES (?, ?, ?, ?)`, rootID, speaker, content, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save turn %s: %w", rootID, err)
	}
	return nil
}

// TurnCount returns the number of logged turns for a conversation root.
func (s *Store) TurnCount(rootID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM turns WHERE root_id = ?`, rootID).Scan(&n); err != nil {
		return 0, fmt.Errorf("turn count %s: %w", rootID, err)
	}
	return n, nil
}
