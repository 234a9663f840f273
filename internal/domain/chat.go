package domain

import "time"

// ChatRole is the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// MaxResultRows bounds the size of a stored result table.
const MaxResultRows = 100

// ResultTable is a query result attached to an assistant message.
type ResultTable struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Truncate drops rows beyond MaxResultRows.
func (t *ResultTable) Truncate() {
	if t != nil && len(t.Rows) > MaxResultRows {
		t.Rows = t.Rows[:MaxResultRows]
	}
}

// ChatMessage is one entry of a user's append-only chat history.
type ChatMessage struct {
	ID        string       `json:"id"`
	UserID    string       `json:"-"`
	Role      ChatRole     `json:"role"`
	Content   string       `json:"content"`
	SQL       *string      `json:"sql"`
	Result    *ResultTable `json:"resultTable"`
	CreatedAt time.Time    `json:"createdAt"`
}
