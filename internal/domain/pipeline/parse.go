package pipeline

import (
	"encoding/json"
	"strings"
)

// ExtractJSON finds the first balanced {...} block in s and returns it if it
// is valid JSON. Models frequently wrap structured answers in prose or code
// fences; this scan tolerates both. Brace counting is string-aware so braces
// inside JSON string values do not unbalance the scan.
func ExtractJSON(s string) (json.RawMessage, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := json.RawMessage(s[start : i+1])
				if json.Valid(candidate) {
					return candidate, true
				}
				return nil, false
			}
		}
	}
	return nil, false
}
