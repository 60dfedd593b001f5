// Package jsonx extracts JSON payloads from free-form model output.
//
// Completions are asked for strict JSON but routinely come back wrapped in
// Markdown fences or surrounded by prose. Extract locates the first
// balanced object or array span and hands back just that span.
package jsonx

import (
	"strings"

	"github.com/tidwall/gjson"
)

// StripFences removes Markdown code-fence framing (```json ... ``` or
// plain ``` ... ```) when the text is fenced. Text without fences is
// returned trimmed and otherwise untouched.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// language tag on the opening fence, e.g. ```json
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		first := strings.TrimSpace(s[:i])
		if len(first) <= 10 && !strings.ContainsAny(first, "{}[]") {
			s = s[i+1:]
		}
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Extract returns the first balanced {...} or [...] span in s, after
// stripping code fences. ok is false when no balanced span exists or the
// span is not valid JSON.
func Extract(s string) (span string, ok bool) {
	s = StripFences(s)

	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inStr := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if !gjson.Valid(candidate) {
					return "", false
				}
				return candidate, true
			}
		}
	}
	return "", false
}
