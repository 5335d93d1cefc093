// Package extract drives the LLM gateway to produce structured paper
// metadata from raw text.
package extract

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/paperdigest/paper-service/internal/llm"
	"github.com/paperdigest/paper-service/internal/model"
)

// maxTextChars truncates very long papers to stay within provider context
// limits. A raw character budget, not a token budget: close enough in
// practice for English-dominated paper text.
const maxTextChars = 12_000

const systemPrompt = "You are a research paper analyst. Always respond in valid JSON."

const promptTemplate = `Given the following paper text, extract structured metadata.

Return a JSON object with exactly these fields:
- "summary": A concise 3-5 sentence summary of the paper
- "contributions": A list of the paper's main contributions (2-5 items)
- "keywords": A list of relevant keywords (5-10 items)
- "methodology": A brief description of the approach/method used
- "results": Key findings or results

Paper text (possibly truncated):
---
%s
---

Respond ONLY with the JSON object, no extra text.
`

// Extractor extracts structured metadata from paper text.
type Extractor struct {
	client llm.Client
}

// NewExtractor creates an Extractor on top of the given LLM client.
func NewExtractor(client llm.Client) *Extractor {
	return &Extractor{client: client}
}

// Extract issues one JSON-mode completion and maps the response onto
// ExtractedMetadata. Input beyond the character budget is dropped
// silently; fields the model omits default to empty.
func (e *Extractor) Extract(ctx context.Context, paperText string) (model.ExtractedMetadata, error) {
	truncated := paperText
	if len(truncated) > maxTextChars {
		truncated = truncated[:maxTextChars]
	}

	zap.L().Info("extracting metadata via LLM",
		zap.Int("input_chars", len(paperText)),
		zap.Bool("truncated", len(paperText) > maxTextChars),
	)

	raw, err := e.client.Complete(ctx, llm.Request{
		Prompt:   fmt.Sprintf(promptTemplate, truncated),
		System:   systemPrompt,
		JSONMode: true,
	})
	if err != nil {
		return model.ExtractedMetadata{}, eris.Wrap(err, "extract: llm completion")
	}

	data, err := llm.ParseJSON(raw)
	if err != nil {
		return model.ExtractedMetadata{}, eris.Wrap(err, "extract: parse response")
	}

	return model.ExtractedMetadata{
		Summary:       stringField(data, "summary"),
		Contributions: stringListField(data, "contributions"),
		Keywords:      stringListField(data, "keywords"),
		Methodology:   stringField(data, "methodology"),
		Results:       stringField(data, "results"),
	}, nil
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func stringListField(data map[string]any, key string) []string {
	raw, ok := data[key].([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
