package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeReply(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  string
	}{
		{"plain text untouched", "Hello there.", "Hello there."},
		{"stage direction stripped", "*laughs* Sure thing.", "Sure thing."},
		{"bracketed action stripped", "[clears throat] Ready when you are.", "Ready when you are."},
		{"interior direction collapses spaces", "Well *pauses* I suppose so.", "Well I suppose so."},
		{"wrapping quotes trimmed", `"Absolutely."`, "Absolutely."},
		{"curly quotes trimmed", "“Of course.”", "Of course."},
		{"multiple directions", "*sighs* Fine. [rolls eyes] Whatever you say.", "Fine. Whatever you say."},
		{"all stripped falls back to raw", "*waves*", "*waves*"},
		{"whitespace only falls back to raw", "   ", "   "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeReply(tc.reply))
		})
	}
}

func TestFallbackReplyDeterministic(t *testing.T) {
	assert.Equal(t, "Echoing your words: hello", FallbackReply("hello"))
	assert.Equal(t, FallbackReply("same"), FallbackReply("same"))
}

func TestEchoGenerator(t *testing.T) {
	reply, err := EchoGenerator{}.Generate(context.Background(), "test phrase", nil)
	require.NoError(t, err)
	assert.Equal(t, FallbackReply("test phrase"), reply)
}

func TestPlaceholderSynthesizerDeterministic(t *testing.T) {
	a, err := PlaceholderSynthesizer{}.Synthesize(context.Background(), "hi")
	require.NoError(t, err)
	b, err := PlaceholderSynthesizer{}.Synthesize(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}
