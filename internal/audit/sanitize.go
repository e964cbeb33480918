package audit

import "strings"

// Redacted replaces the value of every denylisted field.
const Redacted = "[REDACTED]"

// sensitiveFields holds normalized field names. Matching ignores case and the
// '_' and '-' separators, so apiKey, api_key and API-KEY are all covered.
var sensitiveFields = map[string]struct{}{
	"password": {},
	"token":    {},
	"apikey":   {},
	"secret":   {},
	"email":    {},
	"phone":    {},
	"ip":       {},
}

// IsSensitiveField reports whether a details key must be redacted.
func IsSensitiveField(name string) bool {
	n := strings.ToLower(name)
	n = strings.ReplaceAll(n, "_", "")
	n = strings.ReplaceAll(n, "-", "")
	_, ok := sensitiveFields[n]
	return ok
}

// Sanitize returns a redacted copy of details. The input is never modified.
//
// Redaction walks nested maps and slices as well as the top level, so a token
// inside {"request": {"token": "..."}} is also replaced. Sanitize is idempotent.
func Sanitize(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		if IsSensitiveField(k) {
			out[k] = Redacted
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Sanitize(t)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return Sanitize(m)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = sanitizeValue(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Sanitize(item)
		}
		return out
	default:
		return v
	}
}
