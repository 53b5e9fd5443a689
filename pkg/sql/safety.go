package sql

import (
	"fmt"
	"regexp"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// forbiddenVerbPattern matches DDL/DML verbs as whole tokens. Matching on
// token boundaries keeps legitimate identifiers like CREATED_DATE safe.
var forbiddenVerbPattern = regexp.MustCompile(`\b(DROP|DELETE|INSERT|UPDATE|TRUNCATE|ALTER|CREATE)\b`)

// commentPatterns are injection-style comment sequences that have no place
// in generated SQL.
var commentPatterns = []string{"--", "/*"}

// CheckQuerySafety is the post-build safety gate: a second, independent
// check over the finished SQL text, separate from schema validation. The
// validator checks meaning; this checks syntax surface. Any match is fatal.
func CheckQuerySafety(sqlText string) error {
	upper := strings.ToUpper(sqlText)

	if m := forbiddenVerbPattern.FindString(upper); m != "" {
		return fmt.Errorf("query rejected by safety gate: contains forbidden verb %s", m)
	}

	for _, pattern := range commentPatterns {
		if strings.Contains(upper, pattern) {
			return fmt.Errorf("query rejected by safety gate: contains comment sequence %q", pattern)
		}
	}

	return nil
}

// CheckFilterValue runs a filter value through libinjection before it is
// rendered into SQL. The safety gate would catch most payloads anyway;
// this rejects them earlier with a clearer error.
func CheckFilterValue(name, value string) error {
	if isSQLi, fingerprint := libinjection.IsSQLi(value); isSQLi {
		return fmt.Errorf("filter %s rejected: value matches SQL injection pattern (fingerprint %s)", name, string(fingerprint))
	}
	return nil
}
