package protocol

import "encoding/json"

// Control events. connected, transcription_ready, and error travel
// server→client; the rest are client→server.
const (
	EventConnected          = "connected"
	EventResetBuffer        = "reset_buffer"
	EventSpeechEnd          = "speech_end"
	EventTextInput          = "text_input"
	EventTranscriptionReady = "transcription_ready"
	EventError              = "error"
)

// Stage identifiers used in error payloads.
const (
	StageSTT      = "stt"
	StageLLM      = "llm"
	StageTTS      = "tts"
	StagePipeline = "pipeline"
	StageBuffer   = "buffer"
	StageProtocol = "protocol"
)

// InboundControl is a control message as received from the client.
// Payload stays raw until the event is known.
type InboundControl struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ControlMessage is a control message sent to the client.
type ControlMessage struct {
	Type    string `json:"type"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// TextInputPayload carries a text-only turn.
type TextInputPayload struct {
	Text    string `json:"text"`
	SkipTTS bool   `json:"skip_tts"`
}

// Timings are per-stage pipeline latencies in milliseconds.
type Timings struct {
	STTMs   float64 `json:"stt_ms"`
	LLMMs   float64 `json:"llm_ms"`
	TTSMs   float64 `json:"tts_ms"`
	TotalMs float64 `json:"total_ms"`
}

// ReadyPayload is the transcription_ready payload. Transcript is null for
// text-input turns.
type ReadyPayload struct {
	Transcript *string `json:"transcript"`
	ReplyText  string  `json:"reply_text"`
	Timings    Timings `json:"timings"`
}

// ConnectedPayload is sent once after the websocket opens.
type ConnectedPayload struct {
	SessionID string `json:"session_id"`
}

// ErrorPayload reports a non-fatal protocol or pipeline error.
type ErrorPayload struct {
	Stage  string `json:"stage"`
	Detail string `json:"detail"`
}

// NewConnectedMessage announces a freshly created session.
func NewConnectedMessage(sessionID string) *ControlMessage {
	return &ControlMessage{
		Type:    MsgTypeControl,
		Event:   EventConnected,
		Payload: ConnectedPayload{SessionID: sessionID},
	}
}

// NewTranscriptionReady carries the pipeline result for one turn. A binary
// message with the reply audio follows when the audio is non-empty.
func NewTranscriptionReady(transcript *string, replyText string, timings Timings) *ControlMessage {
	return &ControlMessage{
		Type:    MsgTypeControl,
		Event:   EventTranscriptionReady,
		Payload: ReadyPayload{Transcript: transcript, ReplyText: replyText, Timings: timings},
	}
}

// NewErrorMessage reports a stage-scoped error without closing the
// connection.
func NewErrorMessage(stage, detail string) *ControlMessage {
	return &ControlMessage{
		Type:    MsgTypeControl,
		Event:   EventError,
		Payload: ErrorPayload{Stage: stage, Detail: detail},
	}
}
