package scenario

import (
	"fmt"
	"os"
	"strings"
)

// ExpandTemplates replaces placeholders in s:
//   - {{env.VARIABLE}} from the environment
//   - {{name}} from scenario and captured variables (base_url is always set)
func ExpandTemplates(s string, vars map[string]string) (string, error) {
	var out strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			out.WriteString(rest)
			return out.String(), nil
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			return "", fmt.Errorf("unterminated template expression in %q", s)
		}
		end += start

		value, err := resolveExpr(strings.TrimSpace(rest[start+2:end]), vars)
		if err != nil {
			return "", err
		}
		out.WriteString(rest[:start])
		out.WriteString(value)
		rest = rest[end+2:]
	}
}

// wholePlaceholder reports whether s is exactly one placeholder and
// returns its expression.
func wholePlaceholder(s string) (string, bool) {
	if !strings.HasPrefix(s, "{{") || !strings.HasSuffix(s, "}}") {
		return "", false
	}
	inner := s[2 : len(s)-2]
	if strings.Contains(inner, "{{") || strings.Contains(inner, "}}") {
		return "", false
	}
	return strings.TrimSpace(inner), true
}

func resolveExpr(expr string, vars map[string]string) (string, error) {
	if key, ok := strings.CutPrefix(expr, "env."); ok {
		return os.Getenv(key), nil
	}
	if val, ok := vars[expr]; ok {
		return val, nil
	}
	return "", fmt.Errorf("unresolved template expression: %q", expr)
}
