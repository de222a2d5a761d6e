package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cairn-audio/protocol"
	"cairn-audio/stage"
)

// ErrPipelineBusy rejects a flush while a prior flush for the same session
// is still running. Rejected, not queued, so a stuck client cannot grow
// memory without bound.
var ErrPipelineBusy = errors.New("pipeline busy")

// StageError scopes a pipeline failure to one stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Result is the outcome of one pipeline run. Transcript is nil for
// text-input turns.
type Result struct {
	Transcript *string
	ReplyText  string
	ReplyAudio []byte
	Timings    protocol.Timings
}

// Coordinator drives transcription → generation → synthesis for one
// session. At most one run is in flight at a time; TryAcquire guards entry
// so frames for the next utterance keep accumulating while a run is
// active.
//
// Failure policy: a transcription error aborts the turn; generation errors
// degrade to a deterministic fallback reply; synthesis errors degrade to
// empty audio. Degraded turns still produce a full result.
type Coordinator struct {
	stages  stage.Set
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	running bool
}

// NewCoordinator creates a coordinator. timeout bounds every stage call;
// zero disables the bound.
func NewCoordinator(stages stage.Set, timeout time.Duration, log zerolog.Logger) *Coordinator {
	return &Coordinator{stages: stages, timeout: timeout, log: log}
}

// TryAcquire claims the single run slot. Callers must Release after the
// run finishes, success or not.
func (c *Coordinator) TryAcquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return false
	}
	c.running = true
	return true
}

// Release frees the run slot.
func (c *Coordinator) Release() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// Running reports whether a run is in flight.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// RunSpeech executes a speech_end flush over already-taken PCM. The caller
// must hold the run slot.
func (c *Coordinator) RunSpeech(ctx context.Context, pcm []byte, history *History) (Result, error) {
	timer := NewStageTimer()
	timings := protocol.Timings{}

	transcript, err := c.withTimeout(ctx, func(sctx context.Context) (string, error) {
		return c.stages.Transcriber.Transcribe(sctx, pcm)
	})
	timings.STTMs = timer.Mark()
	if err != nil {
		return Result{}, &StageError{Stage: protocol.StageSTT, Err: err}
	}

	c.log.Debug().Int("pcm_bytes", len(pcm)).Str("transcript", transcript).Msg("transcription complete")

	res := c.respond(ctx, transcript, false, history, timer, timings)
	res.Transcript = &transcript
	return res, nil
}

// RunText executes a text_input flush. The caller must hold the run slot.
func (c *Coordinator) RunText(ctx context.Context, text string, skipTTS bool, history *History) (Result, error) {
	timer := NewStageTimer()
	return c.respond(ctx, text, skipTTS, history, timer, protocol.Timings{}), nil
}

// respond runs generation and synthesis for a transcript and records the
// exchange in history. Degrades instead of failing.
func (c *Coordinator) respond(ctx context.Context, transcript string, skipTTS bool, history *History, timer *StageTimer, timings protocol.Timings) Result {
	reply, err := c.withTimeout(ctx, func(sctx context.Context) (string, error) {
		return c.stages.Generator.Generate(sctx, transcript, history.Turns())
	})
	timings.LLMMs = timer.Mark()
	if err != nil {
		c.log.Warn().Err(err).Msg("generation failed, using fallback reply")
		reply = stage.FallbackReply(transcript)
	}

	history.AppendExchange(transcript, reply)

	var audio []byte
	if !skipTTS {
		audio, err = c.withTimeoutBytes(ctx, func(sctx context.Context) ([]byte, error) {
			return c.stages.Synthesizer.Synthesize(sctx, reply)
		})
		timings.TTSMs = timer.Mark()
		if err != nil {
			c.log.Warn().Err(err).Msg("synthesis failed, returning empty audio")
			audio = nil
		}
	}

	timings.TotalMs = timer.Total()
	c.log.Info().
		Float64("stt_ms", timings.STTMs).
		Float64("llm_ms", timings.LLMMs).
		Float64("tts_ms", timings.TTSMs).
		Float64("total_ms", timings.TotalMs).
		Int("transcript_len", len(transcript)).
		Int("reply_len", len(reply)).
		Msg("pipeline complete")

	return Result{ReplyText: reply, ReplyAudio: audio, Timings: timings}
}

func (c *Coordinator) withTimeout(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	if c.timeout <= 0 {
		return fn(ctx)
	}
	sctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return fn(sctx)
}

func (c *Coordinator) withTimeoutBytes(ctx context.Context, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	if c.timeout <= 0 {
		return fn(ctx)
	}
	sctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return fn(sctx)
}

// StageTimer records elapsed wall-clock time for sequential pipeline
// stages.
type StageTimer struct {
	start time.Time
	last  time.Time
}

// NewStageTimer starts timing now.
func NewStageTimer() *StageTimer {
	now := time.Now()
	return &StageTimer{start: now, last: now}
}

// Mark returns the milliseconds since the previous mark (or start) and
// advances the marker.
func (t *StageTimer) Mark() float64 {
	now := time.Now()
	d := now.Sub(t.last)
	t.last = now
	return roundMs(d)
}

// Total returns the milliseconds since the timer started.
func (t *StageTimer) Total() float64 {
	return roundMs(time.Since(t.start))
}

func roundMs(d time.Duration) float64 {
	return math.Round(float64(d)/float64(time.Millisecond)*100) / 100
}
