package stage

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"cairn-audio/protocol"
)

// WhisperTranscriber sends WAV-wrapped PCM to an OpenAI-compatible
// /audio/transcriptions endpoint. Works against OpenAI and Groq by
// switching the base URL and model.
type WhisperTranscriber struct {
	client openai.Client
	model  string
}

// NewWhisperTranscriber builds an STT client. baseURL may be empty for the
// OpenAI default.
func NewWhisperTranscriber(apiKey, baseURL, model string) *WhisperTranscriber {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	return &WhisperTranscriber{client: openai.NewClient(opts...), model: model}
}

// Transcribe uploads the utterance and returns its transcript. Empty input
// transcribes to an empty string without a network call.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	wav := WrapWAV(pcm, protocol.SampleRate, protocol.Channels, protocol.BitsPerSample)

	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(t.model),
		File:  openai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}

	return resp.Text, nil
}

// noTranscriber fails every request; used when no STT key is configured.
type noTranscriber struct{}

func (noTranscriber) Transcribe(context.Context, []byte) (string, error) {
	return "", ErrNoTranscriber
}

// NewNoTranscriber returns a Transcriber that always reports
// ErrNoTranscriber.
func NewNoTranscriber() Transcriber { return noTranscriber{} }

// WrapWAV prepends a 44-byte RIFF header so raw PCM can be uploaded as a
// WAV file.
func WrapWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16)) // PCM fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))  // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
