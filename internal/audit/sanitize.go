// Package audit builds the append-only audit trail for state-changing events.
package audit

import "strings"

// sensitiveFragments are matched case-insensitively against metadata keys.
var sensitiveFragments = []string{
	"password",
	"passwordhash",
	"token",
	"jwt",
	"secret",
	"authorization",
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// Sanitize returns a copy of metadata with sensitive keys removed at every
// depth. A nil map stays nil.
func Sanitize(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if isSensitiveKey(key) {
			continue
		}
		out[key] = sanitizeValue(value)
	}
	return out
}

func sanitizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return Sanitize(v)
	case []map[string]any:
		items := make([]any, 0, len(v))
		for _, item := range v {
			items = append(items, Sanitize(item))
		}
		return items
	case []any:
		items := make([]any, 0, len(v))
		for _, item := range v {
			items = append(items, sanitizeValue(item))
		}
		return items
	default:
		return value
	}
}
