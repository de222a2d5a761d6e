package stage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

// DefaultSystemPrompt keeps replies short and clean enough for TTS.
const DefaultSystemPrompt = "You are Cairn, a concise conversational assistant running on a voice device. " +
	"Respond with plain speech only; never include stage directions, sound effects, or bracketed actions. " +
	"Keep replies short, direct, and ready for text-to-speech."

// ChatGenerator calls an OpenAI-compatible chat completions endpoint.
// Pointing the base URL at OpenRouter exposes its whole model catalogue.
type ChatGenerator struct {
	client openai.Client
	model  string
	prompt string
}

// NewChatGenerator builds a chat-completions generation backend.
func NewChatGenerator(apiKey, baseURL, model, systemPrompt string) *ChatGenerator {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &ChatGenerator{client: openai.NewClient(opts...), model: model, prompt: systemPrompt}
}

func (g *ChatGenerator) Generate(ctx context.Context, text string, history []Turn) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	msgs = append(msgs, openai.SystemMessage(g.prompt))
	for _, turn := range history {
		if turn.Role == RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(turn.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(turn.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(text))

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}

	reply := SanitizeReply(resp.Choices[0].Message.Content)
	if strings.TrimSpace(reply) == "" {
		return FallbackReply(text), nil
	}
	return reply, nil
}

// GeminiGenerator uses Google's GenAI SDK for the generation stage.
type GeminiGenerator struct {
	client *genai.Client
	model  string
	prompt string
}

// NewGeminiGenerator builds a Gemini generation backend.
func NewGeminiGenerator(ctx context.Context, apiKey, model, systemPrompt string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &GeminiGenerator{client: client, model: model, prompt: systemPrompt}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, text string, history []Turn) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		role := genai.RoleUser
		if turn.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Content}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: text}},
	})

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: g.prompt}}},
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	reply := SanitizeReply(resp.Text())
	if strings.TrimSpace(reply) == "" {
		return FallbackReply(text), nil
	}
	return reply, nil
}

// EchoGenerator is the no-credentials fallback: a deterministic echo so the
// wire contract keeps working during LLM outages or local development.
type EchoGenerator struct{}

func (EchoGenerator) Generate(_ context.Context, text string, _ []Turn) (string, error) {
	return FallbackReply(text), nil
}

var (
	stageDirectionRe = regexp.MustCompile(`\*[^*]{0,80}\*`)
	bracketActionRe  = regexp.MustCompile(`\[[^\]]{0,80}\]`)
	multiSpaceRe     = regexp.MustCompile(`\s{2,}`)
)

// SanitizeReply strips stage directions, bracketed actions, and wrapping
// quotes so TTS receives clean speech. Falls back to the raw reply when
// stripping removes everything.
func SanitizeReply(reply string) string {
	cleaned := stageDirectionRe.ReplaceAllString(reply, " ")
	cleaned = bracketActionRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.Trim(cleaned, `"“”'`)
	cleaned = multiSpaceRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return reply
	}
	return cleaned
}
