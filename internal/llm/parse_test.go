package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONPlain(t *testing.T) {
	out, err := ParseJSON(`{"a": 1, "b": "two"}`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), out["a"])
	assert.Equal(t, "two", out["b"])
}

func TestParseJSONFencedWithLanguageTag(t *testing.T) {
	out, err := ParseJSON("```json\n{\"a\": 1}\n```")
	require.NoError(t, err)
	assert.Equal(t, float64(1), out["a"])
}

func TestParseJSONFencedBare(t *testing.T) {
	out, err := ParseJSON("```\n{\"a\": 1}\n```")
	require.NoError(t, err)
	assert.Equal(t, float64(1), out["a"])
}

func TestParseJSONFencedWithSurroundingWhitespace(t *testing.T) {
	out, err := ParseJSON("  \n```json\n{\"summary\": \"ok\"}\n```\n  ")
	require.NoError(t, err)
	assert.Equal(t, "ok", out["summary"])
}

func TestParseJSONMultilineFenced(t *testing.T) {
	out, err := ParseJSON("```json\n{\n  \"keywords\": [\"a\", \"b\"]\n}\n```")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out["keywords"])
}

func TestParseJSONEmptyFencedBlock(t *testing.T) {
	_, err := ParseJSON("```json\n```")
	assert.Error(t, err)
}

func TestParseJSONInvalid(t *testing.T) {
	_, err := ParseJSON("not json at all")
	assert.Error(t, err)
}

func TestParseJSONNonObject(t *testing.T) {
	_, err := ParseJSON(`["a", "b"]`)
	assert.Error(t, err)
}
