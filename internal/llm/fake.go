package llm

import (
	"context"
	"strings"
)

// Fake is a deterministic offline Client for tests and local smoke runs.
// It never needs a credential. It sniffs the prompt for the two downstream
// use cases (metadata extraction, translation) and returns structurally
// valid canned responses; anything else gets a fixed literal answer.
//
// Keeping it as its own Client implementation keeps the real provider code
// paths free of test-only behavior.
type Fake struct{}

// NewFake creates a Fake client.
func NewFake() *Fake {
	return &Fake{}
}

const fakeMetadataJSON = `{
  "summary": "This paper introduces the Transformer, a network architecture based entirely on attention mechanisms, removing recurrence and convolutions. The authors show that attention alone is sufficient for strong sequence transduction performance. Experiments on machine translation benchmarks demonstrate superior quality with greater parallelism and reduced training time.",
  "contributions": [
    "A novel architecture built solely on attention mechanisms",
    "State-of-the-art results on two machine translation tasks",
    "Substantially reduced training cost through parallelization"
  ],
  "keywords": ["transformer", "attention", "sequence transduction", "machine translation", "deep learning", "neural networks"],
  "methodology": "Stacked self-attention and point-wise feed-forward layers in an encoder-decoder structure, trained on standard MT datasets.",
  "results": "Achieves 28.4 BLEU on WMT 2014 English-German and 41.8 BLEU on English-French, outperforming prior ensembles."
}`

const fakeChineseTranslation = "注意力就是你所需要的一切。本文提出了一种全新的网络架构。"

// Complete implements Client.
func (f *Fake) Complete(_ context.Context, req Request) (string, error) {
	switch {
	case strings.Contains(req.Prompt, "extract structured metadata"):
		return fakeMetadataJSON, nil
	case strings.Contains(req.Prompt, "Translate the following"):
		if strings.Contains(req.Prompt, "Chinese") {
			return fakeChineseTranslation + "\n", nil
		}
		return "[translated] " + firstLineOfPayload(req.Prompt), nil
	default:
		return "The answer is 5.", nil
	}
}

// firstLineOfPayload pulls the first line between the --- delimiters of a
// translation prompt so canned output still reflects the input.
func firstLineOfPayload(prompt string) string {
	parts := strings.Split(prompt, "---")
	if len(parts) < 2 {
		return "text"
	}
	for _, line := range strings.Split(parts[1], "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return "text"
}
