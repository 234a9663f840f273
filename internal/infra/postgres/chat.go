package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/colaso96/beforeyouradvisor/internal/chat"
	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/jackc/pgx/v5"
)

// ChatRepository stores the append-only chat history.
type ChatRepository struct {
	db DB
	tx *TransactionRepository
}

// NewChatRepository creates a chat repository on db.
func NewChatRepository(db DB) *ChatRepository {
	return &ChatRepository{db: db, tx: NewTransactionRepository(db)}
}

// CountTransactions returns the user's transaction count for eligibility.
func (r *ChatRepository) CountTransactions(ctx context.Context, userID string) (int, error) {
	return r.tx.CountByUser(ctx, userID)
}

// AppendMessage inserts msg.
func (r *ChatRepository) AppendMessage(ctx context.Context, msg *domain.ChatMessage) error {
	var result any
	if msg.Result != nil {
		b, err := json.Marshal(msg.Result)
		if err != nil {
			return fmt.Errorf("AppendMessage: encode result table: %w", err)
		}
		result = string(b)
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO chat_messages (id, user_id, role, content, sql, result_table, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.UserID, string(msg.Role), msg.Content, msg.SQL, result, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("AppendMessage: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit of the newest messages, oldest first.
func (r *ChatRepository) RecentMessages(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, role, content, sql, result_table, created_at
		FROM chat_messages
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("RecentMessages: query: %w", err)
	}
	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, fmt.Errorf("RecentMessages: %w", err)
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// ListMessages returns the full history, oldest first.
func (r *ChatRepository) ListMessages(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, role, content, sql, result_table, created_at
		FROM chat_messages
		WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListMessages: query: %w", err)
	}
	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, fmt.Errorf("ListMessages: %w", err)
	}
	return msgs, nil
}

// ClearMessages deletes the user's history.
func (r *ChatRepository) ClearMessages(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM chat_messages WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("ClearMessages: %w", err)
	}
	return nil
}

func collectMessages(rows pgx.Rows) ([]domain.ChatMessage, error) {
	defer rows.Close()

	var msgs []domain.ChatMessage
	for rows.Next() {
		var (
			m    domain.ChatMessage
			role string
			raw  []byte
		)
		if err := rows.Scan(&m.ID, &m.UserID, &role, &m.Content, &m.SQL, &raw, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = domain.ChatRole(role)
		if len(raw) > 0 {
			var t domain.ResultTable
			if err := json.Unmarshal(raw, &t); err != nil {
				return nil, fmt.Errorf("decode result table %s: %w", m.ID, err)
			}
			m.Result = &t
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

var _ chat.Store = (*ChatRepository)(nil)
