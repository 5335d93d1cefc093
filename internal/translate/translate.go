// Package translate drives the LLM gateway to translate paper content.
package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/paperdigest/paper-service/internal/llm"
)

// languageNames maps supported ISO-like codes to display names used in the
// prompt. Unrecognized codes are used verbatim as the language name.
var languageNames = map[string]string{
	"zh": "Chinese",
	"ja": "Japanese",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"ko": "Korean",
}

const systemPrompt = "You are a professional academic translator."

const promptTemplate = `Translate the following academic paper text into %s.

Requirements:
- Preserve all technical terms and proper nouns
- Maintain an academic tone
- Keep the original structure (paragraphs, lists)
- Do NOT add any commentary, output ONLY the translation

Text to translate:
---
%s
---
`

// Translator translates text into target languages.
type Translator struct {
	client llm.Client
}

// NewTranslator creates a Translator on top of the given LLM client.
func NewTranslator(client llm.Client) *Translator {
	return &Translator{client: client}
}

// Translate renders text in the language identified by code (e.g. "zh").
// Leading and trailing whitespace is trimmed from the model output.
func (t *Translator) Translate(ctx context.Context, text, code string) (string, error) {
	name, ok := languageNames[code]
	if !ok {
		name = code
	}

	zap.L().Info("translating text",
		zap.Int("chars", len(text)),
		zap.String("language", name),
	)

	result, err := t.client.Complete(ctx, llm.Request{
		Prompt: fmt.Sprintf(promptTemplate, name, text),
		System: systemPrompt,
	})
	if err != nil {
		return "", eris.Wrapf(err, "translate: to %s", name)
	}

	out := strings.TrimSpace(result)
	zap.L().Info("translation complete",
		zap.Int("input_chars", len(text)),
		zap.Int("output_chars", len(out)),
		zap.String("language", name),
	)
	return out, nil
}
