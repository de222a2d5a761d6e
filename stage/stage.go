// Package stage holds the three external collaborators the pipeline drives:
// transcription (audio→text), generation (text+history→text), and synthesis
// (text→PCM). Backends are HTTP clients; every stage that may run without
// credentials degrades to a deterministic local result instead of failing.
package stage

import (
	"context"
	"errors"
	"fmt"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry of per-session conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ErrNoTranscriber is returned when transcription is requested but no STT
// backend is configured. Unlike generation and synthesis there is no
// sensible local fallback for audio, so the turn fails.
var ErrNoTranscriber = errors.New("no transcription backend configured")

// Transcriber converts PCM16 mono 16 kHz bytes into text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// Generator produces a reply for a transcript given prior turns.
type Generator interface {
	Generate(ctx context.Context, text string, history []Turn) (string, error)
}

// Synthesizer renders reply text as PCM16 mono 16 kHz bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Set bundles one backend per stage.
type Set struct {
	Transcriber Transcriber
	Generator   Generator
	Synthesizer Synthesizer
}

// FallbackReply is the deterministic reply used when generation is
// unavailable. Keeping it stable lets clients and tests rely on it.
func FallbackReply(text string) string {
	return fmt.Sprintf("Echoing your words: %s", text)
}
