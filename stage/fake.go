package stage

import (
	"context"
	"sync"
	"time"
)

// FakeTranscriber returns a canned transcript and records what it was fed.
type FakeTranscriber struct {
	Text  string
	Err   error
	Delay time.Duration

	mu      sync.Mutex
	lastPCM []byte
	calls   int
}

func (f *FakeTranscriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	f.mu.Lock()
	f.lastPCM = append([]byte(nil), pcm...)
	f.calls++
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}

// LastPCM returns the audio from the most recent call.
func (f *FakeTranscriber) LastPCM() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPCM
}

// Calls returns how many times Transcribe ran.
func (f *FakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeGenerator returns a canned reply and records the history it saw.
type FakeGenerator struct {
	Reply string
	Err   error

	mu          sync.Mutex
	lastText    string
	lastHistory []Turn
}

func (f *FakeGenerator) Generate(_ context.Context, text string, history []Turn) (string, error) {
	f.mu.Lock()
	f.lastText = text
	f.lastHistory = append([]Turn(nil), history...)
	f.mu.Unlock()

	if f.Err != nil {
		return "", f.Err
	}
	return f.Reply, nil
}

// LastHistory returns the history passed to the most recent call.
func (f *FakeGenerator) LastHistory() []Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastHistory
}

// LastText returns the transcript passed to the most recent call.
func (f *FakeGenerator) LastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastText
}

// FakeSynthesizer returns canned audio bytes.
type FakeSynthesizer struct {
	Audio []byte
	Err   error

	mu       sync.Mutex
	lastText string
}

func (f *FakeSynthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.lastText = text
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	return f.Audio, nil
}

// LastText returns the text passed to the most recent call.
func (f *FakeSynthesizer) LastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastText
}
