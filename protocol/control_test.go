package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptionReadyJSON(t *testing.T) {
	transcript := "hello"
	msg := NewTranscriptionReady(&transcript, "hi there", Timings{
		STTMs: 12.5, LLMMs: 80, TTSMs: 30.25, TotalMs: 122.75,
	})

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, MsgTypeControl, decoded["type"])
	assert.Equal(t, EventTranscriptionReady, decoded["event"])

	payload := decoded["payload"].(map[string]any)
	assert.Equal(t, "hello", payload["transcript"])
	assert.Equal(t, "hi there", payload["reply_text"])

	timings := payload["timings"].(map[string]any)
	assert.Equal(t, 12.5, timings["stt_ms"])
	assert.Equal(t, 122.75, timings["total_ms"])
}

func TestTranscriptionReadyNullTranscript(t *testing.T) {
	// text_input turns carry no transcript
	raw, err := json.Marshal(NewTranscriptionReady(nil, "reply", Timings{}))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	payload := decoded["payload"].(map[string]any)

	v, present := payload["transcript"]
	assert.True(t, present, "transcript key must be serialized")
	assert.Nil(t, v)
}

func TestErrorMessageJSON(t *testing.T) {
	raw, err := json.Marshal(NewErrorMessage(StageSTT, "transcription failed"))
	require.NoError(t, err)

	var decoded InboundControl
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, MsgTypeControl, decoded.Type)
	assert.Equal(t, EventError, decoded.Event)

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(decoded.Payload, &payload))
	assert.Equal(t, StageSTT, payload.Stage)
	assert.Equal(t, "transcription failed", payload.Detail)
}

func TestInboundControlRoundTrip(t *testing.T) {
	raw := []byte(`{"type":"MSG_TYPE_CONTROL","event":"text_input","payload":{"text":"hi","skip_tts":true}}`)

	var msg InboundControl
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, MsgTypeControl, msg.Type)
	assert.Equal(t, EventTextInput, msg.Event)

	var payload TextInputPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "hi", payload.Text)
	assert.True(t, payload.SkipTTS)
}
