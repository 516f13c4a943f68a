package tscompiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-json-experiment/json"

	"github.com/mark3labs/tsapidocs/internal/jsonschema"
)

// docComment renders the JSDoc block for s, or "" when s has nothing to say.
func docComment(s *jsonschema.Schema, indent string) string {
	var lines []string
	if d := strings.TrimSpace(s.Description); d != "" {
		lines = append(lines, strings.Split(d, "\n")...)
	}
	if s.Deprecated {
		lines = append(lines, "@deprecated")
	}
	if len(lines) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(indent + "/**\n")
	for _, l := range lines {
		l = strings.TrimRight(strings.ReplaceAll(l, "*/", "*\\/"), " \t\r")
		if l == "" {
			b.WriteString(indent + " *\n")
			continue
		}
		b.WriteString(indent + " * " + l + "\n")
	}
	b.WriteString(indent + " */\n")
	return b.String()
}

// literal renders a JSON value as a TypeScript literal type.
func literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		out, err := json.Marshal(x)
		if err != nil {
			return strconv.Quote(x)
		}
		return string(out)
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x)
	}
	out, err := json.Marshal(v, json.Deterministic(true))
	if err != nil {
		return "unknown"
	}
	return string(out)
}
