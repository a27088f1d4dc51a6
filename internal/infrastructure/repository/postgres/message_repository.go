package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO messages (id, room_id, user_id, content, created_at)
VALUES ($1,$2,$3,$4,$5)
`, msg.ID, msg.RoomID, msg.UserID, msg.Content, msg.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (r *MessageRepository) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, room_id, user_id, content, created_at
FROM messages
WHERE id = $1
`, id)

	var msg domain.Message
	if err := row.Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.Content, &msg.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrMessageNotFound, "get message", err)
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &msg, nil
}

// SearchLexical ranks messages with ts_rank_cd over the OR of the query terms, so a message
// matching any term is a candidate. The raw rank is returned as the candidate score.
func (r *MessageRepository) SearchLexical(ctx context.Context, query string, roomIDs []string, userID string, limit int) ([]domain.Candidate, error) {
	query = buildTSQuery(query)
	if query == "" || len(roomIDs) == 0 {
		return []domain.Candidate{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	args := []any{query, userID}
	placeholders := make([]string, 0, len(roomIDs))
	for _, id := range roomIDs {
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	args = append(args, limit)

	sqlQuery := fmt.Sprintf(`
SELECT m.id, m.room_id, m.user_id, m.content, m.created_at, ts_rank_cd(m.search_vector, q) AS score
FROM messages m, to_tsquery('simple', $1) q
WHERE m.user_id = $2
  AND m.room_id IN (%s)
  AND m.search_vector @@ q
ORDER BY score DESC, m.created_at DESC
LIMIT $%d
`, strings.Join(placeholders, ", "), len(args))

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Candidate, 0, limit)
	for rows.Next() {
		var (
			c         domain.Candidate
			createdAt time.Time
		)
		if err := rows.Scan(&c.ID, &c.RoomID, &c.UserID, &c.Content, &createdAt, &c.RawScore); err != nil {
			return nil, fmt.Errorf("scan lexical candidate: %w", err)
		}
		c.Timestamp = createdAt.Unix()
		c.Source = domain.SourceLexical
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lexical candidates: %w", err)
	}
	return out, nil
}

// buildTSQuery turns free text into a to_tsquery expression of quoted lexemes joined by |.
// Punctuation splits terms, so tsquery operators in user text never reach the parser.
func buildTSQuery(query string) string {
	terms := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	quoted := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		quoted = append(quoted, "'"+t+"'")
	}
	return strings.Join(quoted, " | ")
}
