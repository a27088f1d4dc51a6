package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

// Store is the embedded single-file backend. It implements the message store, the lexical
// searcher (FTS5 bm25) and the room directory.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.configure(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) configure(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS rooms (
	id TEXT PRIMARY KEY,
	parent_id TEXT,
	display_name TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	room_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_scope ON messages(user_id, room_id, created_at DESC);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
	content,
	content='messages',
	content_rowid='seq',
	tokenize='unicode61'
);

CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
	INSERT INTO messages_fts(rowid, content) VALUES (new.seq, new.content);
END;
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	return nil
}

func (s *Store) CreateMessage(ctx context.Context, msg *domain.Message) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO messages (id, room_id, user_id, content, created_at)
VALUES (?, ?, ?, ?, ?)
`, msg.ID, msg.RoomID, msg.UserID, msg.Content, msg.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, room_id, user_id, content, created_at
FROM messages
WHERE id = ?
`, id)

	var (
		msg       domain.Message
		createdAt int64
	)
	if err := row.Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.Content, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrMessageNotFound, "get message", err)
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	msg.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &msg, nil
}

// SearchLexical matches any query term and scores with -bm25 so larger is better.
func (s *Store) SearchLexical(ctx context.Context, query string, roomIDs []string, userID string, limit int) ([]domain.Candidate, error) {
	match := buildMatchQuery(query)
	if match == "" || len(roomIDs) == 0 {
		return []domain.Candidate{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	args := []any{match, userID}
	placeholders := make([]string, 0, len(roomIDs))
	for _, id := range roomIDs {
		args = append(args, id)
		placeholders = append(placeholders, "?")
	}
	args = append(args, limit)

	q := fmt.Sprintf(`
SELECT m.id, m.room_id, m.user_id, m.content, m.created_at, -bm25(messages_fts) AS score
FROM messages_fts
JOIN messages m ON messages_fts.rowid = m.seq
WHERE messages_fts MATCH ?
  AND m.user_id = ?
  AND m.room_id IN (%s)
ORDER BY score DESC, m.created_at DESC
LIMIT ?
`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Candidate, 0, limit)
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.ID, &c.RoomID, &c.UserID, &c.Content, &c.Timestamp, &c.RawScore); err != nil {
			return nil, fmt.Errorf("scan lexical candidate: %w", err)
		}
		c.Source = domain.SourceLexical
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lexical candidates: %w", err)
	}
	return out, nil
}

func (s *Store) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, COALESCE(parent_id, ''), display_name
FROM rooms
WHERE id = ?
`, roomID)

	var room domain.Room
	if err := row.Scan(&room.ID, &room.ParentID, &room.DisplayName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRoomNotFound, "get room", fmt.Errorf("id=%s", roomID))
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return &room, nil
}

func (s *Store) UpsertRoom(ctx context.Context, room domain.Room) error {
	var parent any
	if room.ParentID != "" {
		parent = room.ParentID
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO rooms (id, parent_id, display_name, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE
SET parent_id = excluded.parent_id, display_name = excluded.display_name, updated_at = excluded.updated_at
`, room.ID, parent, room.DisplayName, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert room: %w", err)
	}
	return nil
}

// buildMatchQuery quotes every term so FTS5 operators in user text are taken literally, and
// ORs them so partial matches still rank.
func buildMatchQuery(query string) string {
	words := strings.Fields(query)
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		clean := strings.ReplaceAll(w, `"`, "")
		if strings.IndexFunc(clean, isTermRune) < 0 {
			continue
		}
		quoted = append(quoted, `"`+clean+`"`)
	}
	return strings.Join(quoted, " OR ")
}

func isTermRune(r rune) bool {
	return r == '_' || ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || r > 127
}
