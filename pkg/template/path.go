package template

import (
	"strconv"
	"strings"
)

// extractedDataPrefix lets callers write context-relative and
// extractedData-relative paths interchangeably.
const extractedDataPrefix = "extractedData."

// Lookup resolves a dotted path against ctx. Each segment may be a plain key,
// a bare numeric index applied to an array, or a name[index] bracket form.
// A missing segment or a nil value anywhere along the path fails the lookup.
//
// A full dotted path that exists as a literal key on ctx wins over nested
// traversal; flattened field names like "order.reference" are common in
// extraction schemas. This means a literal key "a.b" shadows a nested
// {a: {b: ...}} structure.
func Lookup(path string, ctx map[string]any) (any, bool) {
	if path == "" || ctx == nil {
		return nil, false
	}

	if value, ok := ctx[path]; ok {
		return value, value != nil
	}

	if trimmed, ok := strings.CutPrefix(path, extractedDataPrefix); ok {
		if value, found := ctx[trimmed]; found {
			return value, value != nil
		}

		if value, found := descend(trimmed, ctx); found {
			return value, true
		}
	}

	return descend(path, ctx)
}

func descend(path string, ctx map[string]any) (any, bool) {
	var current any = ctx

	for _, segment := range strings.Split(path, ".") {
		if current == nil {
			return nil, false
		}

		name, index, indexed := splitBracket(segment)

		if name != "" {
			obj, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}

			next, found := obj[name]
			if !found {
				return nil, false
			}

			current = next
		}

		if indexed {
			arr, ok := current.([]any)
			if !ok || index < 0 || index >= len(arr) {
				return nil, false
			}

			current = arr[index]
		}
	}

	if current == nil {
		return nil, false
	}

	return current, true
}

// splitBracket parses a single path segment. "items[2]" yields ("items", 2, true),
// a bare numeric segment like "0" yields ("", 0, true), and a plain key yields
// (key, 0, false).
func splitBracket(segment string) (string, int, bool) {
	if open := strings.IndexByte(segment, '['); open >= 0 && strings.HasSuffix(segment, "]") {
		index, err := strconv.Atoi(segment[open+1 : len(segment)-1])
		if err == nil {
			return segment[:open], index, true
		}
	}

	if index, err := strconv.Atoi(segment); err == nil {
		return "", index, true
	}

	return segment, 0, false
}
