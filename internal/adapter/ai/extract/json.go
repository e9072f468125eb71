// Package extract recovers a JSON object from free-form LLM output.
package extract

import (
	"encoding/json"
	"strings"
)

// Object extracts a JSON object from raw model output. Markdown code fences
// are stripped first; if the remainder still fails to parse, the substring
// between the first '{' and the last '}' is tried.
func Object(raw string) (map[string]any, bool) {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		if len(lines) >= 2 {
			text = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	if obj, ok := tryUnmarshal(text); ok {
		return obj, true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		if obj, ok := tryUnmarshal(text[start : end+1]); ok {
			return obj, true
		}
	}

	return nil, false
}

// Preview returns at most n characters of text for diagnostics. Error
// messages and logs must stay bounded regardless of payload size.
func Preview(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return text[:n]
}

func tryUnmarshal(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, false
	}
	return obj, true
}
