package scenario

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// EvaluateBodyAssertions checks JSONPath assertions against a JSON body.
// An expected value is either a literal compared for equality or a map of
// operators: exists, eq, ne, gte, lte, contains, regex, length.
func EvaluateBodyAssertions(body []byte, assertions map[string]any) error {
	doc, err := parseJSONDoc(body)
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(assertions))
	for p := range assertions {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := evaluateOne(doc, path, assertions[path]); err != nil {
			return err
		}
	}
	return nil
}

func evaluateOne(doc any, path string, expected any) error {
	actual, found, err := jsonPathGet(doc, path)
	if err != nil {
		return fmt.Errorf("invalid JSONPath %q: %w", path, err)
	}

	if ops, ok := expected.(map[string]any); ok {
		return evaluateOperators(path, actual, found, ops)
	}

	if !found {
		return fmt.Errorf("JSONPath %q: no match found", path)
	}
	if !valuesEqual(actual, expected) {
		return fmt.Errorf("JSONPath %q: expected %v, got %v", path, expected, actual)
	}
	return nil
}

func evaluateOperators(path string, actual any, found bool, ops map[string]any) error {
	for op, expected := range ops {
		if op != "exists" && !found {
			return fmt.Errorf("JSONPath %q: no match found for %q check", path, op)
		}

		switch op {
		case "exists":
			want, ok := expected.(bool)
			if !ok {
				return fmt.Errorf("JSONPath %q: 'exists' requires a boolean", path)
			}
			if want != found {
				if want {
					return fmt.Errorf("JSONPath %q: expected to exist but no match found", path)
				}
				return fmt.Errorf("JSONPath %q: expected not to exist but found %v", path, actual)
			}

		case "eq":
			if !valuesEqual(actual, expected) {
				return fmt.Errorf("JSONPath %q: expected eq %v, got %v", path, expected, actual)
			}

		case "ne":
			if valuesEqual(actual, expected) {
				return fmt.Errorf("JSONPath %q: expected a value other than %v", path, expected)
			}

		case "gte", "lte":
			a, err := toFloat64(actual)
			if err != nil {
				return fmt.Errorf("JSONPath %q: %q requires a numeric actual value: %w", path, op, err)
			}
			e, err := toFloat64(expected)
			if err != nil {
				return fmt.Errorf("JSONPath %q: %q requires a numeric expected value: %w", path, op, err)
			}
			if op == "gte" && a < e {
				return fmt.Errorf("JSONPath %q: expected >= %v, got %v", path, e, a)
			}
			if op == "lte" && a > e {
				return fmt.Errorf("JSONPath %q: expected <= %v, got %v", path, e, a)
			}

		case "contains":
			a, e := fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)
			if !strings.Contains(a, e) {
				return fmt.Errorf("JSONPath %q: expected to contain %q, got %q", path, e, a)
			}

		case "regex":
			pattern, ok := expected.(string)
			if !ok {
				return fmt.Errorf("JSONPath %q: 'regex' requires a string pattern", path)
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return fmt.Errorf("JSONPath %q: invalid regex %q: %w", path, pattern, err)
			}
			if s := fmt.Sprintf("%v", actual); !re.MatchString(s) {
				return fmt.Errorf("JSONPath %q: value %q does not match %q", path, s, pattern)
			}

		case "length":
			want, err := toFloat64(expected)
			if err != nil {
				return fmt.Errorf("JSONPath %q: 'length' requires a number", path)
			}
			var n int
			switch v := actual.(type) {
			case []any:
				n = len(v)
			case map[string]any:
				n = len(v)
			case string:
				n = len(v)
			default:
				return fmt.Errorf("JSONPath %q: 'length' needs an array, object or string, got %T", path, actual)
			}
			if float64(n) != want {
				return fmt.Errorf("JSONPath %q: expected length %v, got %d", path, want, n)
			}

		default:
			return fmt.Errorf("JSONPath %q: unknown operator %q", path, op)
		}
	}
	return nil
}

// valuesEqual compares with numeric coercion. A number equals an expected
// string only when the string parses to the same number, which is how an
// expanded variable meets the value it was captured from.
func valuesEqual(actual, expected any) bool {
	a, aErr := toFloat64(actual)
	e, eErr := toFloat64(expected)
	if aErr == nil && eErr == nil {
		return a == e
	}
	if aErr == nil {
		if s, ok := expected.(string); ok {
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				return a == n
			}
		}
		return false
	}
	if eErr == nil {
		return false
	}
	return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected)
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}

// ExtractJSONPath returns the value at path in a JSON body.
func ExtractJSONPath(body []byte, path string) (any, error) {
	doc, err := parseJSONDoc(body)
	if err != nil {
		return nil, err
	}
	val, found, err := jsonPathGet(doc, path)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath %q: %w", path, err)
	}
	if !found {
		return nil, fmt.Errorf("JSONPath %q: no match found", path)
	}
	return val, nil
}

// jsonPathGet evaluates a dot-notation path such as $.items[0].qty.
// Negative indexes count from the end.
func jsonPathGet(doc any, path string) (any, bool, error) {
	rest, ok := strings.CutPrefix(path, "$")
	if !ok {
		return nil, false, fmt.Errorf("JSONPath must start with $: %q", path)
	}
	rest = strings.TrimPrefix(rest, ".")

	current := doc
	for _, seg := range splitPathSegments(rest) {
		if seg == "" {
			continue
		}
		field, indexes, err := parseSegment(seg)
		if err != nil {
			return nil, false, err
		}
		if field != "" {
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false, nil
			}
			if current, ok = m[field]; !ok {
				return nil, false, nil
			}
		}
		for _, idx := range indexes {
			arr, ok := current.([]any)
			if !ok {
				return nil, false, nil
			}
			if idx < 0 {
				idx += len(arr)
			}
			if idx < 0 || idx >= len(arr) {
				return nil, false, nil
			}
			current = arr[idx]
		}
	}
	return current, true, nil
}

// parseSegment splits "items[0][1]" into "items" and [0 1].
func parseSegment(seg string) (string, []int, error) {
	open := strings.IndexByte(seg, '[')
	if open < 0 {
		return seg, nil, nil
	}
	field := seg[:open]
	var indexes []int
	for rest := seg[open:]; rest != ""; {
		end := strings.IndexByte(rest, ']')
		if rest[0] != '[' || end < 0 {
			return "", nil, fmt.Errorf("malformed index in %q", seg)
		}
		idx, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return "", nil, fmt.Errorf("invalid array index in %q: %w", seg, err)
		}
		indexes = append(indexes, idx)
		rest = rest[end+1:]
	}
	return field, indexes, nil
}

func splitPathSegments(path string) []string {
	var segments []string
	var cur strings.Builder
	depth := 0
	for _, ch := range path {
		switch {
		case ch == '[':
			depth++
		case ch == ']':
			depth--
		case ch == '.' && depth == 0:
			segments = append(segments, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteRune(ch)
	}
	if cur.Len() > 0 {
		segments = append(segments, cur.String())
	}
	return segments
}

func parseJSONDoc(body []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("response body is not valid JSON: %w", err)
	}
	return doc, nil
}
