// Package sqlguard restricts model-generated SQL to a single read-only
// statement scoped to the requesting user through the $1 bind parameter.
package sqlguard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ResultLimit is the hard row cap applied to every executed query.
const ResultLimit = 100

var (
	ErrEmpty              = errors.New("query is empty")
	ErrMultipleStatements = errors.New("only a single statement is allowed")
	ErrNotSelect          = errors.New("query must start with SELECT or WITH")
	ErrForbiddenKeyword   = errors.New("query contains a forbidden keyword")
	ErrMissingUserScope   = errors.New("query must filter with user_id = $1")
	ErrExtraPlaceholder   = errors.New("only the $1 placeholder is allowed")
)

var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "MERGE", "UPSERT",
	"DROP", "ALTER", "CREATE", "TRUNCATE", "RENAME",
	"GRANT", "REVOKE", "COPY", "VACUUM", "REINDEX", "CLUSTER", "LOCK",
	"EXECUTE", "CALL", "PREPARE", "DEALLOCATE",
	"LISTEN", "NOTIFY", "SET", "RESET", "COMMENT", "REFRESH",
	"ATTACH", "DETACH",
}

var (
	selectPrefix   = regexp.MustCompile(`(?i)^(select|with)\b`)
	forbiddenWords = regexp.MustCompile(`(?i)\b(` + strings.Join(forbiddenKeywords, "|") + `)\b`)
	userScope      = regexp.MustCompile(`(?i)\buser_id = \$1\b`)
	placeholder    = regexp.MustCompile(`\$(\d+)`)
)

// Validate checks sql and returns it with a single trailing semicolon
// removed. Rejections wrap one of the package sentinel errors so the caller
// can feed the message back to the model.
func Validate(sql string) (string, error) {
	s := strings.TrimSpace(sql)
	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	if s == "" {
		return "", ErrEmpty
	}
	if strings.Contains(s, ";") {
		return "", ErrMultipleStatements
	}
	if !selectPrefix.MatchString(s) {
		return "", ErrNotSelect
	}
	if kw := forbiddenWords.FindString(s); kw != "" {
		return "", fmt.Errorf("%w: %s", ErrForbiddenKeyword, strings.ToUpper(kw))
	}
	if !userScope.MatchString(s) {
		return "", ErrMissingUserScope
	}
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		if m[1] != "1" {
			return "", fmt.Errorf("%w: found $%s", ErrExtraPlaceholder, m[1])
		}
	}
	return s, nil
}

// WrapWithLimit100 caps a validated statement at ResultLimit rows.
func WrapWithLimit100(sql string) string {
	return "SELECT * FROM (" + sql + ") AS user_query LIMIT 100"
}
