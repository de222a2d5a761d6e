package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cairn-audio/protocol"
)

var (
	// ErrMalformedControl is returned for text messages that are not a
	// valid control envelope. Reported to the client, never fatal.
	ErrMalformedControl = errors.New("malformed control message")

	// ErrUnknownEvent is returned for well-formed control messages whose
	// event the server does not handle.
	ErrUnknownEvent = errors.New("unknown control event")

	// ErrEmptyTextInput is returned for text_input with no text.
	ErrEmptyTextInput = errors.New("empty text input")
)

// ActionKind classifies what a control message asks the session to do.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionClearBuffer
	ActionFlush
)

// Trigger distinguishes the two flush sources.
type Trigger int

const (
	TriggerSpeechEnd Trigger = iota
	TriggerTextInput
)

// Action is the typed outcome of routing one control message.
type Action struct {
	Kind    ActionKind
	Trigger Trigger
	Text    string // text_input only
	SkipTTS bool   // text_input only
}

// RouteControl parses a raw text message into an Action. Errors map to
// error replies; they never close the connection.
func RouteControl(raw []byte) (Action, error) {
	var msg protocol.InboundControl
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrMalformedControl, err)
	}
	if msg.Type != protocol.MsgTypeControl {
		return Action{}, fmt.Errorf("%w: type %q", ErrMalformedControl, msg.Type)
	}
	if msg.Event == "" {
		return Action{}, fmt.Errorf("%w: missing event", ErrMalformedControl)
	}

	switch msg.Event {
	case protocol.EventResetBuffer:
		return Action{Kind: ActionClearBuffer}, nil

	case protocol.EventSpeechEnd:
		return Action{Kind: ActionFlush, Trigger: TriggerSpeechEnd}, nil

	case protocol.EventTextInput:
		var payload protocol.TextInputPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return Action{}, fmt.Errorf("%w: bad text_input payload: %v", ErrMalformedControl, err)
			}
		}
		payload.Text = strings.TrimSpace(payload.Text)
		if payload.Text == "" {
			return Action{}, ErrEmptyTextInput
		}
		return Action{
			Kind:    ActionFlush,
			Trigger: TriggerTextInput,
			Text:    payload.Text,
			SkipTTS: payload.SkipTTS,
		}, nil

	default:
		return Action{}, fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Event)
	}
}
