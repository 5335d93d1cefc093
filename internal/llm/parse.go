package llm

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ParseJSON extracts a JSON object from a completion response. Models
// frequently wrap JSON in markdown code fences (with or without a language
// tag); every fence-delimiter line is stripped before parsing.
func ParseJSON(text string) (map[string]any, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		var kept []string
		for _, line := range strings.Split(cleaned, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}
			kept = append(kept, line)
		}
		cleaned = strings.TrimSpace(strings.Join(kept, "\n"))
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, eris.Wrapf(err, "llm: parse json response (%d chars after fence strip)", len(cleaned))
	}
	return out, nil
}
