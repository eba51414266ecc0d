package safety

import (
	"regexp"
	"strings"
)

// SQLValidator only allows read-only SELECT statements over an
// allow-listed set of tables and functions. It is a text scanner, not a
// parser: the security model is deny-list + allow-list over word-bounded
// tokens of the normalized statement.
type SQLValidator struct {
	allowedTables   map[string]struct{}
	deniedPatterns  []*regexp.Regexp
	allowedFuncs    map[string]struct{}
}

var deniedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "TRUNCATE",
	"REPLACE", "MERGE", "CALL", "EXEC", "EXECUTE", "GRANT", "REVOKE",
	"LOAD", "OUTFILE", "DUMPFILE", "INTO", "NULL", "INFORMATION_SCHEMA",
	"MYSQL", "PERFORMANCE_SCHEMA", "SYS", "SHOW", "DESCRIBE", "EXPLAIN",
}

var allowedFunctions = []string{
	"COUNT", "SUM", "AVG", "MAX", "MIN", "UPPER", "LOWER", "SUBSTRING",
	"CONCAT", "DATE", "YEAR", "MONTH", "DAY", "NOW", "CURDATE", "CURTIME",
	"DATEDIFF", "COALESCE", "IFNULL", "NULLIF", "ROUND", "FLOOR", "CEIL",
}

var (
	lineCommentPattern  = regexp.MustCompile(`(?m)--.*$`)
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
	tableNamePattern    = regexp.MustCompile(`(?i)(?:FROM|JOIN)\s+([a-zA-Z_][a-zA-Z0-9_]*)`)
	functionCallPattern = regexp.MustCompile(`(?i)([a-zA-Z_][a-zA-Z0-9_]*)\s*\(`)
	isNullPattern       = regexp.MustCompile(`\bIS\s+(?:NOT\s+)?NULL\b`)
)

func NewSQLValidator(allowedTables []string) *SQLValidator {
	tables := make(map[string]struct{}, len(allowedTables))
	for _, t := range allowedTables {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			tables[t] = struct{}{}
		}
	}

	patterns := make([]*regexp.Regexp, len(deniedKeywords))
	for i, kw := range deniedKeywords {
		patterns[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
	}

	funcs := make(map[string]struct{}, len(allowedFunctions))
	for _, f := range allowedFunctions {
		funcs[f] = struct{}{}
	}

	return &SQLValidator{
		allowedTables:  tables,
		deniedPatterns: patterns,
		allowedFuncs:   funcs,
	}
}

// Validate normalizes the statement (comments stripped, whitespace
// collapsed) and runs the four checks. It returns the cleaned statement
// on pass; rejection is always an *UnsafeQueryError and the query is
// never silently repaired.
func (v *SQLValidator) Validate(query string) (string, error) {
	clean := cleanQuery(query)

	if !startsWithSelect(clean) {
		return "", reject(CheckStatementKind, "only SELECT statements are allowed")
	}

	if kw := v.findDeniedKeyword(clean); kw != "" {
		return "", reject(CheckDeniedKeyword, "statement contains forbidden keyword %q", kw)
	}

	if err := v.validateTables(clean); err != nil {
		return "", err
	}

	if err := v.validateFunctions(clean); err != nil {
		return "", err
	}

	return clean, nil
}

func (v *SQLValidator) AllowedTables() []string {
	tables := make([]string, 0, len(v.allowedTables))
	for t := range v.allowedTables {
		tables = append(tables, t)
	}
	return tables
}

func cleanQuery(query string) string {
	query = lineCommentPattern.ReplaceAllString(query, "")
	query = blockCommentPattern.ReplaceAllString(query, "")
	query = whitespacePattern.ReplaceAllString(query, " ")
	return strings.TrimSpace(query)
}

func startsWithSelect(query string) bool {
	return strings.HasPrefix(strings.ToUpper(query), "SELECT")
}

func (v *SQLValidator) findDeniedKeyword(query string) string {
	upper := strings.ToUpper(query)

	// "IS NULL" / "IS NOT NULL" must never trip the bare NULL ban, but
	// the carve-out is token-local: mask the matched phrases so any
	// other NULL in the statement is still caught.
	masked := isNullPattern.ReplaceAllString(upper, " ")

	for i, pattern := range v.deniedPatterns {
		if pattern.MatchString(masked) {
			return deniedKeywords[i]
		}
	}
	return ""
}

func (v *SQLValidator) validateTables(query string) error {
	matches := tableNamePattern.FindAllStringSubmatch(query, -1)
	if len(matches) == 0 {
		return reject(CheckTableAllowList, "no table reference found")
	}

	for _, m := range matches {
		table := strings.ToLower(m[1])
		if _, ok := v.allowedTables[table]; !ok {
			return reject(CheckTableAllowList, "table %q is not allow-listed", m[1])
		}
	}
	return nil
}

func (v *SQLValidator) validateFunctions(query string) error {
	matches := functionCallPattern.FindAllStringSubmatch(query, -1)

	for _, m := range matches {
		fn := strings.ToUpper(m[1])
		if _, ok := v.allowedFuncs[fn]; !ok {
			return reject(CheckFuncAllowList, "function %q is not allow-listed", m[1])
		}
	}
	return nil
}
