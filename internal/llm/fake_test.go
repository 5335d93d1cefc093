package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeMetadataResponse(t *testing.T) {
	out, err := NewFake().Complete(context.Background(), Request{
		Prompt: "Given the following paper text, extract structured metadata.\n---\nsome paper\n---",
	})
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.NotEmpty(t, parsed["summary"])
	assert.Len(t, parsed["contributions"], 3)
	assert.NotEmpty(t, parsed["keywords"])
}

func TestFakeChineseTranslation(t *testing.T) {
	out, err := NewFake().Complete(context.Background(), Request{
		Prompt: "Translate the following academic paper text into Chinese.\n---\nAttention is all you need.\n---",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "注意力")
}

func TestFakeOtherLanguageEchoesInput(t *testing.T) {
	out, err := NewFake().Complete(context.Background(), Request{
		Prompt: "Translate the following academic paper text into Spanish.\n---\nAttention is all you need.\n---",
	})
	require.NoError(t, err)
	assert.Equal(t, "[translated] Attention is all you need.", out)
}

func TestFakeDefaultResponse(t *testing.T) {
	out, err := NewFake().Complete(context.Background(), Request{Prompt: "What is 2+3?"})
	require.NoError(t, err)
	assert.Equal(t, "The answer is 5.", out)
}
