package connector

import (
	"fmt"
	"regexp"
	"strings"
)

var baseBlockedKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "CREATE",
	"ALTER", "TRUNCATE", "GRANT", "REVOKE",
}

var (
	SQLiteBlockedKeywords     = []string{"ATTACH", "DETACH", "PRAGMA"}
	RedshiftBlockedKeywords   = []string{"VACUUM", "ANALYZE", "COPY", "UNLOAD"}
	PostgresBlockedKeywords   = []string{"COPY", "VACUUM", "LISTEN", "NOTIFY"}
	DuckDBBlockedKeywords     = []string{"ATTACH", "DETACH", "COPY", "EXPORT", "INSTALL", "LOAD"}
	ClickHouseBlockedKeywords = []string{"SYSTEM", "OPTIMIZE", "KILL", "RENAME"}
)

var limitRe = regexp.MustCompile(`\bLIMIT\b`)

// Validator performs the read-only checks every connector shares: the query
// must be a single SELECT (or CTE) and must not contain a blocked keyword.
type Validator struct {
	blocked []blockedKeyword
}

type blockedKeyword struct {
	word string
	re   *regexp.Regexp
}

// NewValidator returns a validator that blocks the base write/DDL keywords
// plus any dialect-specific extras.
func NewValidator(extra ...string) *Validator {
	seen := make(map[string]bool)
	v := &Validator{}
	for _, kw := range append(append([]string{}, baseBlockedKeywords...), extra...) {
		kw = strings.ToUpper(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		v.blocked = append(v.blocked, blockedKeyword{
			word: kw,
			re:   regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`),
		})
	}
	return v
}

// Blocked returns the keywords this validator rejects.
func (v *Validator) Blocked() []string {
	out := make([]string, len(v.blocked))
	for i, b := range v.blocked {
		out[i] = b.word
	}
	return out
}

func (v *Validator) Check(sql string) ValidationResult {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return Invalid("Empty query")
	}
	upper := strings.ToUpper(trimmed)

	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return Invalid("Only SELECT queries are allowed")
	}

	for _, b := range v.blocked {
		if b.re.MatchString(upper) {
			return Invalid(fmt.Sprintf("Forbidden keyword detected: %s", b.word))
		}
	}

	if strings.Contains(strings.TrimSuffix(strings.TrimSpace(stripQuoted(upper)), ";"), ";") {
		return Invalid("Multiple statements are not allowed")
	}

	res := ValidationResult{Valid: true}
	if !limitRe.MatchString(upper) {
		res.Warnings = append(res.Warnings, "Query has no LIMIT clause; results will be capped")
	}
	return res
}

// stripQuoted removes the contents of single- and double-quoted literals,
// including doubled-quote escapes, so separators inside them are ignored.
func stripQuoted(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))
	var quote rune
	for _, r := range sql {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				b.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TrimStatement strips surrounding whitespace and a single trailing semicolon.
func TrimStatement(sql string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
}
