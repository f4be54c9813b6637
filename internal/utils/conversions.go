package utils

import "strings"

// StringList normalises a claim that may be a space-delimited string, a
// []string or a decoded JSON array. Non-string array members are skipped.
func StringList(v any) []string {
	switch t := v.(type) {
	case string:
		return strings.Fields(t)
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
