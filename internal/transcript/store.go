// Package transcript persists the raw chat transcript, independent of the
// conversation context. Appends are fire-and-forget: losing a transcript row
// never fails a turn.
package transcript

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// Message is one transcript row.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Append writes one message in a background goroutine with its own detached
// context, so a cancelled request cannot abort the write and a failed write
// cannot fail the turn.
func (s *Store) Append(_ context.Context, conversationID, role, text string) {
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := s.db.ExecContext(bgCtx,
			`INSERT INTO messages (conversation_id, role, content) VALUES ($1, $2, $3)`,
			conversationID, role, text)
		if err != nil {
			s.logger.Warn("transcript append failed",
				zap.String("conversation_id", conversationID), zap.Error(err))
		}
	}()
}

// Transcript returns all messages of a conversation in creation order.
func (s *Store) Transcript(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at
         FROM messages
         WHERE conversation_id = $1
         ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
