package chat

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/colaso96/beforeyouradvisor/internal/domain"
)

const schemaDescription = `Table transactions (PostgreSQL):
- id text
- user_id text
- date date
- institution text ('chase', 'amex', 'crypto_card')
- description text
- amount numeric(12,2), always positive
- transaction_type text ('DEBIT')
- llm_category text, nullable
- is_deductible boolean, nullable
- llm_reasoning text, nullable
- created_at timestamptz`

// rowLevelKeywords mark questions that ask for individual rows. They match
// whole words only, so "reaching" is not "each".
var rowLevelKeywords = regexp.MustCompile(`(?i)\b(?:list|show me|which transactions|each|every|rows|table|itemize|all transactions|description|merchant)\b`)

// IsRowLevel reports whether question asks for row-level detail.
func IsRowLevel(question string) bool {
	return rowLevelKeywords.MatchString(question)
}

func buildSQLPrompt(question string, history []domain.ChatMessage, last *attemptFailure) string {
	var b strings.Builder
	b.WriteString("You translate questions about a user's card transactions into one PostgreSQL query.\n\n")
	b.WriteString(schemaDescription)
	b.WriteString("\n\nRULES:\n")
	b.WriteString("1. Write exactly one SELECT statement (WITH is allowed). No semicolons inside the query.\n")
	b.WriteString("2. Always filter rows with the exact predicate user_id = $1.\n")
	b.WriteString("3. Do not use any placeholder other than $1.\n")
	b.WriteString("4. Never modify data or schema.\n")
	b.WriteString("5. Return only the SQL, without explanation.\n")

	if len(history) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
			if m.SQL != nil {
				fmt.Fprintf(&b, "  (sql: %s)\n", *m.SQL)
			}
		}
	}

	if last != nil {
		b.WriteString("\nYour previous attempt failed. Fix it.\n")
		if last.sql != "" {
			fmt.Fprintf(&b, "Previous SQL: %s\n", last.sql)
		}
		fmt.Fprintf(&b, "Error: %v\n", last.err)
	}

	fmt.Fprintf(&b, "\nQuestion: %s\nSQL:", question)
	return b.String()
}

func buildSummaryPrompt(question string, columns []string, rowsJSON string, rowLevel bool) string {
	var b strings.Builder
	b.WriteString("You are a helpful bookkeeping assistant. Answer the user's question using only the query results below.\n\n")
	fmt.Fprintf(&b, "Question: %s\n", question)
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(columns, ", "))
	fmt.Fprintf(&b, "Rows (JSON): %s\n\n", rowsJSON)
	if rowLevel {
		b.WriteString("The user asked for individual transactions. Reply with a compact list, one line per row, with the fields they asked for.\n")
	} else {
		b.WriteString("Reply with a short narrative: totals, trends and notable outliers. Do not dump the rows.\n")
	}
	b.WriteString("If there are no rows, say so plainly.")
	return b.String()
}
