package session

import (
	"errors"

	"cairn-audio/protocol"
)

// ReplyMessages builds the outgoing message sequence for a successful
// pipeline run: one transcription_ready control message, then one binary
// message with the raw reply audio when it is non-empty (skip_tts and
// degraded synthesis turns carry no audio).
//
// Entries are either *protocol.ControlMessage (sent as JSON text) or
// []byte (sent as one binary websocket message).
func ReplyMessages(res Result) []any {
	msgs := []any{
		protocol.NewTranscriptionReady(res.Transcript, res.ReplyText, res.Timings),
	}
	if len(res.ReplyAudio) > 0 {
		msgs = append(msgs, res.ReplyAudio)
	}
	return msgs
}

// ErrorReply maps a session or pipeline error to the single error control
// message sent in place of a reply. No binary message follows an error.
func ErrorReply(err error) *protocol.ControlMessage {
	var stageErr *StageError
	switch {
	case errors.As(err, &stageErr):
		return protocol.NewErrorMessage(stageErr.Stage, stageErr.Err.Error())
	case errors.Is(err, ErrPipelineBusy):
		return protocol.NewErrorMessage(protocol.StagePipeline, err.Error())
	case errors.Is(err, ErrParameterMismatch),
		errors.Is(err, ErrBufferFull),
		errors.Is(err, ErrEmptyBuffer):
		return protocol.NewErrorMessage(protocol.StageBuffer, err.Error())
	default:
		return protocol.NewErrorMessage(protocol.StageProtocol, err.Error())
	}
}
