package session

import (
	"errors"
	"sync"

	"cairn-audio/protocol"
)

var (
	// ErrBufferFull is returned when an append would exceed the maximum
	// buffer size. The frame is dropped; buffered audio is kept.
	ErrBufferFull = errors.New("audio buffer full")

	// ErrParameterMismatch is returned when a frame's audio format differs
	// from the format locked by the first frame of the utterance. The
	// pending utterance is discarded; the session stays open.
	ErrParameterMismatch = errors.New("audio parameters changed mid-stream")

	// ErrEmptyBuffer is returned by TakeAndClear when nothing is buffered.
	ErrEmptyBuffer = errors.New("no audio buffered")
)

// Buffer accumulates one utterance's PCM between a clear and a flush.
// The audio format is locked by the first frame after each clear; sequence
// gaps are counted for observability only, no retransmission is requested.
type Buffer struct {
	mu      sync.Mutex
	pcm     []byte
	format  protocol.AudioFormat
	locked  bool
	lastSeq uint16
	haveSeq bool
	gaps    uint64
	maxSize int
}

// NewBuffer creates a buffer with the specified maximum size in bytes.
func NewBuffer(maxSize int) *Buffer {
	return &Buffer{maxSize: maxSize}
}

// MaxSize returns the maximum buffer size.
func (b *Buffer) MaxSize() int {
	return b.maxSize
}

// Append adds one decoded frame to the buffer.
//
// The first frame since the last clear locks the audio format. A frame
// whose format differs from the locked one clears the buffer and returns
// ErrParameterMismatch. A frame whose sequence is not exactly last+1
// (modulo 65536) increments the gap counter, except for the first frame
// since clear.
func (b *Buffer) Append(h protocol.FrameHeader, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.locked {
		b.format = h.Format()
		b.locked = true
	} else if h.Format() != b.format {
		b.clearLocked()
		return ErrParameterMismatch
	}

	if b.maxSize > 0 && len(b.pcm)+len(payload) > b.maxSize {
		return ErrBufferFull
	}

	b.pcm = append(b.pcm, payload...)

	if b.haveSeq && h.Sequence != b.lastSeq+1 { // uint16 arithmetic wraps mod 65536
		b.gaps++
	}
	b.lastSeq = h.Sequence
	b.haveSeq = true

	return nil
}

// Reset clears buffered audio, the locked format, and sequence bookkeeping.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
}

// TakeAndClear returns the buffered PCM and its locked format, then clears
// the buffer so the next utterance starts a fresh epoch.
func (b *Buffer) TakeAndClear() ([]byte, protocol.AudioFormat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pcm) == 0 {
		return nil, protocol.AudioFormat{}, ErrEmptyBuffer
	}

	pcm := b.pcm
	format := b.format
	b.pcm = nil
	b.clearLocked()

	return pcm, format, nil
}

// Size returns the current total buffered bytes.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pcm)
}

// IsEmpty reports whether no audio is buffered.
func (b *Buffer) IsEmpty() bool {
	return b.Size() == 0
}

// GapCount returns the number of observed sequence discontinuities since
// the last clear.
func (b *Buffer) GapCount() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gaps
}

// Format returns the locked audio format, if any frame locked one.
func (b *Buffer) Format() (protocol.AudioFormat, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.format, b.locked
}

func (b *Buffer) clearLocked() {
	b.pcm = nil
	b.format = protocol.AudioFormat{}
	b.locked = false
	b.lastSeq = 0
	b.haveSeq = false
	b.gaps = 0
}
