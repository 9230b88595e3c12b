package genai

import (
	"encoding/json"
	"strings"
)

// ParseStructuredOutput decodes a JSON object out of raw model text.
// Markdown fences and prose around the object are ignored. fallback is
// returned when nothing decodes or valid rejects the result; the function
// never fails.
func ParseStructuredOutput[T any](raw string, fallback T, valid func(*T) bool) T {
	candidate := ExtractJSON(raw)
	if candidate == "" {
		return fallback
	}
	var out T
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return fallback
	}
	if valid != nil && !valid(&out) {
		return fallback
	}
	return out
}

// ExtractJSON returns the first JSON object in raw, or "".
func ExtractJSON(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	if start := strings.Index(text, "```"); start >= 0 {
		rest := text[start+3:]
		if newline := strings.Index(rest, "\n"); newline >= 0 {
			// drop the language tag
			rest = rest[newline+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			text = strings.TrimSpace(rest[:end])
		}
	}
	// the object ends where the decoder stops, so braces in trailing prose
	// do not matter; a brace in leading prose moves on to the next one
	for offset := 0; offset < len(text); {
		first := strings.IndexByte(text[offset:], '{')
		if first < 0 {
			return ""
		}
		start := offset + first
		var object json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&object); err == nil {
			return string(object)
		}
		offset = start + 1
	}
	return ""
}
