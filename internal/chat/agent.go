// Package chat answers natural-language questions about a user's
// transactions by generating, guarding and executing SQL.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/colaso96/beforeyouradvisor/internal/llm"
	"github.com/colaso96/beforeyouradvisor/internal/logger"
	"github.com/colaso96/beforeyouradvisor/internal/sqlguard"
	"github.com/google/uuid"
)

// SummaryFallback is the assistant text used when summarization fails.
const SummaryFallback = "Here are the results of your query."

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrNotEligible   = errors.New("not enough transactions to chat about")
)

// Store persists chat history and answers the eligibility count.
type Store interface {
	CountTransactions(ctx context.Context, userID string) (int, error)
	AppendMessage(ctx context.Context, msg *domain.ChatMessage) error
	// RecentMessages returns up to limit of the newest messages, oldest first.
	RecentMessages(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error)
	ListMessages(ctx context.Context, userID string) ([]domain.ChatMessage, error)
	ClearMessages(ctx context.Context, userID string) error
}

// QueryRunner executes a guarded statement with userID bound to $1.
type QueryRunner interface {
	Query(ctx context.Context, sql string, userID string) (*domain.ResultTable, error)
}

// Options configures the agent.
type Options struct {
	MaxRetries      int
	HistoryWindow   int
	MinTransactions int
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{MaxRetries: 2, HistoryWindow: 5, MinTransactions: 2}
}

// Agent runs one chat turn at a time per call.
type Agent struct {
	gen    llm.Generator
	store  Store
	runner QueryRunner
	opts   Options
	now    func() time.Time
}

// NewAgent creates a chat agent.
func NewAgent(gen llm.Generator, store Store, runner QueryRunner, opts Options) *Agent {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Agent{gen: gen, store: store, runner: runner, opts: opts, now: time.Now}
}

type attemptFailure struct {
	sql string
	err error
}

// Ask answers question for userID and returns the persisted assistant
// message. Exhausting every attempt is a normal outcome reported in the
// message content, not an error.
func (a *Agent) Ask(ctx context.Context, userID, question string) (*domain.ChatMessage, error) {
	log := logger.FromContext(ctx).With().Str("user_id", userID).Logger()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	count, err := a.store.CountTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Ask: count transactions: %w", err)
	}
	if count < a.opts.MinTransactions {
		return nil, ErrNotEligible
	}

	history, err := a.store.RecentMessages(ctx, userID, a.opts.HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("Ask: load history: %w", err)
	}

	if err := a.store.AppendMessage(ctx, a.newMessage(userID, domain.RoleUser, question)); err != nil {
		return nil, fmt.Errorf("Ask: persist question: %w", err)
	}

	var last *attemptFailure
	attempts := a.opts.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sql, table, err := a.attempt(ctx, userID, buildSQLPrompt(question, history, last))
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Str("sql", sql).Msg("Chat query attempt failed")
			last = &attemptFailure{sql: sql, err: err}
			continue
		}

		msg := a.newMessage(userID, domain.RoleAssistant, a.summarize(ctx, question, table))
		msg.SQL = &sql
		msg.Result = table
		if err := a.store.AppendMessage(ctx, msg); err != nil {
			return nil, fmt.Errorf("Ask: persist answer: %w", err)
		}
		return msg, nil
	}

	msg := a.newMessage(userID, domain.RoleAssistant,
		fmt.Sprintf("Sorry, I couldn't complete that query after %d attempts. Last error: %v", attempts, last.err))
	if last.sql != "" {
		msg.SQL = &last.sql
	}
	if err := a.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("Ask: persist failure: %w", err)
	}
	return msg, nil
}

// attempt generates, guards and runs one statement. The returned SQL is the
// best available text for audit even when err is set.
func (a *Agent) attempt(ctx context.Context, userID, prompt string) (string, *domain.ResultTable, error) {
	raw, err := a.gen.GenerateText(ctx, prompt)
	if err != nil {
		return "", nil, fmt.Errorf("generate SQL: %w", err)
	}
	sql := extractSQL(raw)

	validated, err := sqlguard.Validate(sql)
	if err != nil {
		return sql, nil, fmt.Errorf("rejected query: %w", err)
	}

	table, err := a.runner.Query(ctx, sqlguard.WrapWithLimit100(validated), userID)
	if err != nil {
		return validated, nil, fmt.Errorf("query failed: %w", err)
	}
	if table == nil {
		table = &domain.ResultTable{}
	}
	table.Truncate()
	return validated, table, nil
}

func (a *Agent) summarize(ctx context.Context, question string, table *domain.ResultTable) string {
	rows, err := json.Marshal(table.Rows)
	if err != nil {
		return SummaryFallback
	}
	text, err := a.gen.GenerateText(ctx, buildSummaryPrompt(question, table.Columns, string(rows), IsRowLevel(question)))
	if err != nil || strings.TrimSpace(text) == "" {
		logger.FromContext(ctx).Warn().Err(err).Msg("Chat summarization failed, using placeholder")
		return SummaryFallback
	}
	return strings.TrimSpace(text)
}

// History returns the user's full chat history, oldest first.
func (a *Agent) History(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	msgs, err := a.store.ListMessages(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}
	return msgs, nil
}

// Clear deletes the user's chat history.
func (a *Agent) Clear(ctx context.Context, userID string) error {
	if err := a.store.ClearMessages(ctx, userID); err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	return nil
}

func (a *Agent) newMessage(userID string, role domain.ChatRole, content string) *domain.ChatMessage {
	return &domain.ChatMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: a.now().UTC(),
	}
}

// extractSQL strips markdown fences and a leading "sql" tag from a model
// answer.
func extractSQL(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
		if len(s) >= 3 && strings.EqualFold(s[:3], "sql") {
			s = s[3:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}
