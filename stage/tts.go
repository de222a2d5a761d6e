package stage

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// SpeechSynthesizer calls an OpenAI-compatible /audio/speech endpoint and
// requests raw PCM output.
type SpeechSynthesizer struct {
	client openai.Client
	model  string
	voice  string
}

// NewSpeechSynthesizer builds a TTS client.
func NewSpeechSynthesizer(apiKey, baseURL, model, voice string) *SpeechSynthesizer {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = string(openai.SpeechModelTTS1)
	}
	if voice == "" {
		voice = string(openai.AudioSpeechNewParamsVoiceAlloy)
	}
	return &SpeechSynthesizer{client: openai.NewClient(opts...), model: model, voice: voice}
}

func (s *SpeechSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}
	return audio, nil
}

// PlaceholderSynthesizer is the no-credentials fallback: deterministic fake
// bytes that keep the reply shape intact without a TTS provider.
type PlaceholderSynthesizer struct{}

func (PlaceholderSynthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	return fmt.Appendf(nil, "[tts-bytes for '%s']", text), nil
}
