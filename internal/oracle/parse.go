package oracle

import (
	"encoding/json"
	"strings"
)

// Parsed is the outcome of extracting a JSON object from model output.
type Parsed struct {
	OK    bool
	Value map[string]any
}

// ParseObject extracts a JSON object from text that may be wrapped in
// markdown code fences or followed by commentary. The whole body is tried
// first, then the first balanced {...} span.
func ParseObject(text string) Parsed {
	body := stripFences(text)
	if body == "" {
		return Parsed{}
	}

	if v, ok := decodeObject(body); ok {
		return Parsed{OK: true, Value: v}
	}

	span, ok := firstObject(body)
	if !ok {
		return Parsed{}
	}
	if v, ok := decodeObject(span); ok {
		return Parsed{OK: true, Value: v}
	}
	return Parsed{}
}

func decodeObject(s string) (map[string]any, bool) {
	var v map[string]any
	if err := json.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// stripFences removes a surrounding ``` or ```json fence.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// firstObject returns the first brace-balanced {...} span in s, skipping
// braces inside JSON strings.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
