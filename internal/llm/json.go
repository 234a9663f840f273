package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// CleanJSON strips markdown fences and surrounding prose from a model
// answer, keeping the outermost JSON object.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```json")
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return strings.TrimSpace(s)
}

// DecodeStrict unmarshals a cleaned model answer into v, rejecting unknown
// fields and trailing data. Failures are reported as output-invalid.
func DecodeStrict(raw string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(CleanJSON(raw))))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return Invalid(fmt.Errorf("decode model JSON: %w", err))
	}
	if dec.More() {
		return Invalid(fmt.Errorf("decode model JSON: trailing data"))
	}
	return nil
}
