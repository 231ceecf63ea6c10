package llm

import (
	"strings"
)

// ExtractSQL pulls the SQL statement out of a model response. It prefers a
// ```sql fenced block, then any fenced block that looks like SQL, then the
// whole response.
func ExtractSQL(response string) string {
	response = strings.TrimSpace(response)

	if start := strings.Index(response, "```sql"); start != -1 {
		start += len("```sql")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return cleanSQL(response[start : start+end])
		}
		return cleanSQL(response[start:])
	}

	if start := strings.Index(response, "```"); start != -1 {
		body := response[start+3:]
		if end := strings.Index(body, "```"); end != -1 {
			body = body[:end]
		}
		// Drop an info string such as "SQL" or "postgresql" on the fence line.
		if nl := strings.IndexByte(body, '\n'); nl != -1 && !looksLikeSQL(body) {
			body = body[nl+1:]
		}
		if looksLikeSQL(body) {
			return cleanSQL(body)
		}
	}

	if idx := sqlStart(response); idx > 0 {
		return cleanSQL(response[idx:])
	}
	return cleanSQL(response)
}

func looksLikeSQL(text string) bool {
	upper := strings.ToUpper(strings.TrimSpace(text))
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
}

// sqlStart finds the first line that begins a query in free-form text.
func sqlStart(text string) int {
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		if looksLikeSQL(line) {
			return offset + (len(line) - len(strings.TrimLeft(line, " \t")))
		}
		offset += len(line)
	}
	return -1
}

// cleanSQL trims whitespace and a trailing semicolon.
func cleanSQL(sql string) string {
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSuffix(sql, ";")
	return strings.TrimSpace(sql)
}
