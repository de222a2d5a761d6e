package session

import (
	"sync"

	"cairn-audio/stage"
)

// History is the per-session conversation context fed to the generation
// stage. It survives buffer resets and flushes; only disconnect (or the
// turn cap) drops turns.
type History struct {
	mu       sync.Mutex
	turns    []stage.Turn
	maxTurns int
}

// NewHistory creates a history keeping at most maxTurns entries; zero
// means unbounded.
func NewHistory(maxTurns int) *History {
	return &History{maxTurns: maxTurns}
}

// AppendExchange records one user/assistant pair, dropping the oldest
// turns past the cap.
func (h *History) AppendExchange(userText, replyText string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns,
		stage.Turn{Role: stage.RoleUser, Content: userText},
		stage.Turn{Role: stage.RoleAssistant, Content: replyText},
	)
	if h.maxTurns > 0 && len(h.turns) > h.maxTurns {
		h.turns = h.turns[len(h.turns)-h.maxTurns:]
	}
}

// Turns returns a copy of the recorded turns, oldest first.
func (h *History) Turns() []stage.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]stage.Turn(nil), h.turns...)
}

// Len returns the number of recorded turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}
