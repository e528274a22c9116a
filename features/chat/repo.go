package chat

import (
	"context"
	"database/sql"
	"encoding/json"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, m *Message) error {
	sources, err := json.Marshal(m.Sources)
	if err != nil {
		return err
	}
	query := `INSERT INTO chat_history (conversation_id, role, content, sources) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, m.ConversationID, m.Role, m.Content, sources).Scan(&m.ID, &m.CreatedAt)
}

// Recent returns the last limit turns of a conversation, oldest first.
func (r *PostgresRepo) Recent(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	query := `SELECT id, conversation_id, role, content, sources, created_at FROM (
		SELECT id, conversation_id, role, content, sources, created_at FROM chat_history
		WHERE conversation_id = $1 ORDER BY created_at DESC LIMIT $2
	) recent ORDER BY created_at ASC`
	return r.query(ctx, query, conversationID, limit)
}

func (r *PostgresRepo) Conversation(ctx context.Context, conversationID string) ([]Message, error) {
	query := `SELECT id, conversation_id, role, content, sources, created_at FROM chat_history WHERE conversation_id = $1 ORDER BY created_at ASC`
	return r.query(ctx, query, conversationID)
}

func (r *PostgresRepo) DeleteConversation(ctx context.Context, conversationID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chat_history WHERE conversation_id = $1`, conversationID)
	return err
}

func (r *PostgresRepo) query(ctx context.Context, query string, args ...interface{}) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var sources []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &sources, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &m.Sources); err != nil {
				return nil, err
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
