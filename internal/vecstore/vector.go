package vecstore

import (
	"regexp"
	"strconv"
	"strings"
)

// table names are interpolated into DDL/DML, so they must be plain
// identifiers
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidTableName reports whether name is safe to use as a table identifier.
func ValidTableName(name string) bool {
	return identPattern.MatchString(name)
}

// formatVector renders an embedding in pgvector's text input format,
// e.g. "[0.1,0.2,0.3]".
func formatVector(v []float32) string {
	var sb strings.Builder
	sb.Grow(len(v)*10 + 2)
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
