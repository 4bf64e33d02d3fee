package dialogue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound marks confirmed absence of a conversation. Callers must treat
// any other load error as transient: conflating a failed read with "no prior
// context" would silently discard history.
var ErrNotFound = errors.New("conversation context not found")

// Repository persists conversation contexts keyed by conversation ID.
type Repository interface {
	Load(ctx context.Context, conversationID string) (*ConversationContext, error)
	Save(ctx context.Context, c *ConversationContext) error
}

type postgresRepo struct {
	db *sql.DB
}

// NewRepository constructs the Postgres-backed repository.
func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

func (r *postgresRepo) Load(ctx context.Context, conversationID string) (*ConversationContext, error) {
	query := `SELECT context FROM conversation_contexts WHERE conversation_id = $1`

	var blob []byte
	err := r.db.QueryRowContext(ctx, query, conversationID).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load context %s: %w", conversationID, err)
	}

	c, err := UnmarshalContext(blob)
	if err != nil {
		return nil, fmt.Errorf("unmarshal context %s: %w", conversationID, err)
	}
	return c, nil
}

func (r *postgresRepo) Save(ctx context.Context, c *ConversationContext) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.UpdatedAt = time.Now().UTC()

	blob, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("marshal context %s: %w", c.ConversationID, err)
	}

	query := `
		INSERT INTO conversation_contexts (conversation_id, user_id, context, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (conversation_id) DO UPDATE SET
			context = $3,
			updated_at = $5
	`
	_, err = r.db.ExecContext(ctx, query,
		c.ConversationID, c.UserID, blob, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save context %s: %w", c.ConversationID, err)
	}
	return nil
}
