package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"cairn-audio/protocol"
)

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
)

// ClientSession represents a single device connection: one audio buffer,
// one conversation history, one pipeline coordinator.
//
// All reads happen on a single goroutine, so frame appends and control
// routing for one session are naturally serialized. Pipeline runs execute
// on their own goroutine; the coordinator's run slot keeps them from
// overlapping while the read loop keeps accumulating the next utterance.
type ClientSession struct {
	ID           string
	Conn         *websocket.Conn
	Buffer       *Buffer
	History      *History
	Pipeline     *Coordinator
	CreatedAt    time.Time
	LastActivity time.Time

	// Use channels for non-blocking writes
	writeChan chan any

	mu        sync.RWMutex
	closed    bool
	CloseChan chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	keepAlive time.Duration
	log       zerolog.Logger
}

// NewClientSession creates a session around an upgraded websocket
// connection. keepAlive sets the ping interval; zero disables pings.
func NewClientSession(id string, conn *websocket.Conn, buffer *Buffer, history *History, pipeline *Coordinator, keepAlive time.Duration, log zerolog.Logger) *ClientSession {
	ctx, cancel := context.WithCancel(context.Background())

	conn.SetReadLimit(512 * 1024) // 512KB max message
	conn.EnableWriteCompression(true)

	return &ClientSession{
		ID:           id,
		Conn:         conn,
		Buffer:       buffer,
		History:      history,
		Pipeline:     pipeline,
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
		writeChan:    make(chan any, writeBufferSize),
		CloseChan:    make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
		keepAlive:    keepAlive,
		log:          log.With().Str("session", shortID(id)).Logger(),
	}
}

// Start begins the write pump and read loop and announces the session.
func (cs *ClientSession) Start() {
	go cs.writePump()
	cs.queueMessage(protocol.NewConnectedMessage(cs.ID))
	go cs.readLoop()
}

// writePump handles all outgoing messages in a single goroutine. Entries
// are either *protocol.ControlMessage (JSON text) or []byte (binary).
// Pings go out on the keepAlive interval so idle sessions survive
// intermediaries that drop quiet connections.
func (cs *ClientSession) writePump() {
	keepAlive := cs.keepAlive
	if keepAlive <= 0 {
		keepAlive = time.Hour
	}
	ticker := time.NewTicker(keepAlive)

	defer func() {
		ticker.Stop()
		cs.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		cs.Conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	}()

	for {
		select {
		case <-cs.CloseChan:
			return
		case <-ticker.C:
			cs.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cs.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-cs.writeChan:
			if !ok {
				return
			}
			if err := cs.writeOne(msg); err != nil {
				return
			}

			// Drain whatever queued up behind this message
			n := len(cs.writeChan)
			for i := 0; i < n; i++ {
				select {
				case msg, ok := <-cs.writeChan:
					if !ok {
						return
					}
					if err := cs.writeOne(msg); err != nil {
						return
					}
				default:
				}
			}
		}
	}
}

func (cs *ClientSession) writeOne(msg any) error {
	cs.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if b, ok := msg.([]byte); ok {
		return cs.Conn.WriteMessage(websocket.BinaryMessage, b)
	}
	return cs.Conn.WriteJSON(msg)
}

// queueMessage adds a message to the write queue (non-blocking).
func (cs *ClientSession) queueMessage(msg any) {
	cs.mu.RLock()
	closed := cs.closed
	cs.mu.RUnlock()
	if closed {
		return
	}
	select {
	case cs.writeChan <- msg:
	default:
		cs.log.Warn().Msg("write queue full, dropping message")
	}
}

// readLoop processes incoming messages until the connection drops. Binary
// messages are audio frames; text messages are control JSON.
func (cs *ClientSession) readLoop() {
	defer cs.Close()

	for {
		select {
		case <-cs.CloseChan:
			return
		default:
			messageType, message, err := cs.Conn.ReadMessage()
			if err != nil {
				if !cs.IsClosed() {
					cs.log.Debug().Err(err).Msg("read loop ended")
				}
				return
			}

			cs.touch()

			if messageType == websocket.BinaryMessage {
				cs.handleFrame(message)
				continue
			}
			cs.handleControl(message)
		}
	}
}

// handleFrame decodes and buffers one audio frame, translating codec and
// buffer errors into error replies. No frame error closes the connection.
func (cs *ClientSession) handleFrame(raw []byte) {
	header, payload, err := protocol.DecodeFrame(raw)
	if err != nil {
		cs.log.Warn().Err(err).Int("received_bytes", len(raw)).Msg("frame rejected")
		cs.queueMessage(protocol.NewErrorMessage(protocol.StageProtocol, err.Error()))
		return
	}

	if err := cs.Buffer.Append(header, payload); err != nil {
		cs.log.Warn().Err(err).
			Uint16("sequence", header.Sequence).
			Str("format", header.Format().String()).
			Msg("frame rejected")
		cs.queueMessage(ErrorReply(err))
		return
	}

	cs.log.Debug().
		Uint16("sequence", header.Sequence).
		Int("total_bytes", cs.Buffer.Size()).
		Msg("frame buffered")
}

// handleControl routes one control message and executes the resulting
// action.
func (cs *ClientSession) handleControl(raw []byte) {
	action, err := RouteControl(raw)
	if err != nil {
		cs.log.Warn().Err(err).Msg("control rejected")
		cs.queueMessage(protocol.NewErrorMessage(protocol.StageProtocol, err.Error()))
		return
	}

	switch action.Kind {
	case ActionClearBuffer:
		cs.Buffer.Reset()
		cs.log.Info().Msg("buffer reset")

	case ActionFlush:
		cs.startFlush(action)
	}
}

// startFlush claims the pipeline run slot and launches the run. speech_end
// with an empty buffer is a deliberate no-op: logged, nothing emitted.
func (cs *ClientSession) startFlush(action Action) {
	if !cs.Pipeline.TryAcquire() {
		cs.log.Warn().Msg("flush rejected, pipeline busy")
		cs.queueMessage(ErrorReply(ErrPipelineBusy))
		return
	}

	if action.Trigger == TriggerSpeechEnd {
		gaps := cs.Buffer.GapCount()
		pcm, format, err := cs.Buffer.TakeAndClear()
		if err != nil {
			cs.Pipeline.Release()
			cs.log.Info().Msg("flush skipped, no audio buffered")
			return
		}
		cs.log.Info().
			Int("buffered_bytes", len(pcm)).
			Float64("est_duration_ms", estimateDurationMs(len(pcm), format)).
			Uint64("sequence_gaps", gaps).
			Msg("flush begin")

		go cs.runPipeline(func(ctx context.Context) (Result, error) {
			return cs.Pipeline.RunSpeech(ctx, pcm, cs.History)
		})
		return
	}

	cs.log.Info().Int("text_len", len(action.Text)).Bool("skip_tts", action.SkipTTS).Msg("text turn begin")
	go cs.runPipeline(func(ctx context.Context) (Result, error) {
		return cs.Pipeline.RunText(ctx, action.Text, action.SkipTTS, cs.History)
	})
}

// runPipeline executes one flush off the read loop and queues the reply.
// If the session closed mid-run the queued messages are dropped.
func (cs *ClientSession) runPipeline(run func(context.Context) (Result, error)) {
	defer cs.Pipeline.Release()

	res, err := run(cs.ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		cs.log.Error().Err(err).Msg("pipeline failed")
		cs.queueMessage(ErrorReply(err))
		return
	}

	for _, msg := range ReplyMessages(res) {
		cs.queueMessage(msg)
	}
}

// Close terminates the session and cleans up resources.
func (cs *ClientSession) Close() error {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return nil
	}
	cs.closed = true
	cs.mu.Unlock()

	cs.cancel()

	// Close the write channel first to stop writePump
	close(cs.writeChan)
	close(cs.CloseChan)

	cs.Buffer.Reset()

	if cs.Conn != nil {
		cs.Conn.Close()
	}

	return nil
}

// IsClosed returns whether the session is closed.
func (cs *ClientSession) IsClosed() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.closed
}

func (cs *ClientSession) touch() {
	cs.mu.Lock()
	cs.LastActivity = time.Now()
	cs.mu.Unlock()
}

// lastActivity returns the most recent activity timestamp.
func (cs *ClientSession) lastActivity() time.Time {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.LastActivity
}

// estimateDurationMs approximates the audio duration of a PCM span.
func estimateDurationMs(byteLen int, format protocol.AudioFormat) float64 {
	bytesPerSample := int(format.Channels) * int(format.BitsPerSample) / 8
	if bytesPerSample == 0 || format.SampleRate == 0 {
		return 0
	}
	samples := float64(byteLen) / float64(bytesPerSample)
	return samples / float64(format.SampleRate) * 1000
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
