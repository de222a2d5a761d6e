package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteResetBuffer(t *testing.T) {
	action, err := RouteControl([]byte(`{"type":"MSG_TYPE_CONTROL","event":"reset_buffer","payload":{}}`))
	require.NoError(t, err)
	assert.Equal(t, ActionClearBuffer, action.Kind)
}

func TestRouteSpeechEnd(t *testing.T) {
	action, err := RouteControl([]byte(`{"type":"MSG_TYPE_CONTROL","event":"speech_end"}`))
	require.NoError(t, err)
	assert.Equal(t, ActionFlush, action.Kind)
	assert.Equal(t, TriggerSpeechEnd, action.Trigger)
}

func TestRouteTextInput(t *testing.T) {
	action, err := RouteControl([]byte(`{"type":"MSG_TYPE_CONTROL","event":"text_input","payload":{"text":"  hello there ","skip_tts":true}}`))
	require.NoError(t, err)
	assert.Equal(t, ActionFlush, action.Kind)
	assert.Equal(t, TriggerTextInput, action.Trigger)
	assert.Equal(t, "hello there", action.Text)
	assert.True(t, action.SkipTTS)
}

func TestRouteTextInputDefaults(t *testing.T) {
	action, err := RouteControl([]byte(`{"type":"MSG_TYPE_CONTROL","event":"text_input","payload":{"text":"hi"}}`))
	require.NoError(t, err)
	assert.False(t, action.SkipTTS)
}

func TestRouteTextInputEmpty(t *testing.T) {
	for _, raw := range []string{
		`{"type":"MSG_TYPE_CONTROL","event":"text_input","payload":{"text":"   "}}`,
		`{"type":"MSG_TYPE_CONTROL","event":"text_input","payload":{}}`,
		`{"type":"MSG_TYPE_CONTROL","event":"text_input"}`,
	} {
		_, err := RouteControl([]byte(raw))
		assert.ErrorIs(t, err, ErrEmptyTextInput, "input: %s", raw)
	}
}

func TestRouteMalformed(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{}`,
		`{"event":"speech_end"}`,
		`{"type":"MSG_TYPE_AUDIO_CHUNK","event":"speech_end"}`,
		`{"type":"MSG_TYPE_CONTROL"}`,
		`{"type":"MSG_TYPE_CONTROL","event":"text_input","payload":"not an object"}`,
	} {
		_, err := RouteControl([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedControl, "input: %s", raw)
	}
}

func TestRouteUnknownEvent(t *testing.T) {
	for _, event := range []string{"bogus", "connected", "transcription_ready", "error"} {
		_, err := RouteControl([]byte(`{"type":"MSG_TYPE_CONTROL","event":"` + event + `"}`))
		assert.ErrorIs(t, err, ErrUnknownEvent, "event: %s", event)
	}
}
