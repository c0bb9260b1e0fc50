// Package template resolves {{path}} placeholders against the execution
// context. Placeholders whose path cannot be resolved are left verbatim so
// templates degrade visibly rather than silently.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	doubleBracePattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)
	singleBracePattern = regexp.MustCompile(`\{\s*([^{}]+?)\s*\}`)
)

// Resolve replaces every {{path}} placeholder in tmpl with the stringified
// value found at that path in ctx. Unresolvable placeholders pass through
// unchanged.
func Resolve(tmpl string, ctx map[string]any) string {
	return resolvePattern(doubleBracePattern, tmpl, ctx)
}

// ResolveSingle is the single-brace variant used for user-facing step
// summaries, where editors write {path} instead of {{path}}.
func ResolveSingle(tmpl string, ctx map[string]any) string {
	return resolvePattern(singleBracePattern, tmpl, ctx)
}

func resolvePattern(pattern *regexp.Regexp, tmpl string, ctx map[string]any) string {
	return pattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		path := strings.TrimSpace(pattern.FindStringSubmatch(match)[1])

		value, ok := Lookup(path, ctx)
		if !ok {
			return match
		}

		return Stringify(value)
	})
}

// Stringify coerces a resolved value to its string form. Plain strings pass
// through; numbers drop a trailing ".0"; composites are rendered as JSON.
func Stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(encoded)
	default:
		return fmt.Sprint(v)
	}
}
