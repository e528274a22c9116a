// Package llmjson extracts JSON objects from free-form model output.
package llmjson

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoJSON = errors.New("no json object in model output")

// Decode unmarshals raw into v. Model output often wraps JSON in a fenced
// block or surrounds it with prose, so after a direct attempt it tries the
// first fenced block and then the outermost brace span.
func Decode(raw string, v any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}

	if block, ok := fenced(raw); ok {
		if err := json.Unmarshal([]byte(block), v); err == nil {
			return nil
		}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ErrNoJSON
	}
	return json.Unmarshal([]byte(raw[start:end+1]), v)
}

func fenced(raw string) (string, bool) {
	open := strings.Index(raw, "```")
	if open < 0 {
		return "", false
	}
	rest := raw[open+3:]
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}
