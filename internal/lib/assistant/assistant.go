package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

var (
	ErrNotConfigured = errors.New("OpenAI client not initialized - missing API key")
	ErrEmptyQuery    = errors.New("empty query")
)

// ChatCompleter is the subset of *openai.Client used here
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type openAIAssistant struct {
	client   ChatCompleter
	model    string
	language string
	now      func() time.Time
}

// NewAssistant creates an OpenAI-backed Assistant. With no API key every
// call fails with ErrNotConfigured.
func NewAssistant(apiKey, model, language string) Assistant {
	if apiKey == "" {
		return NewAssistantWithClient(nil, model, language)
	}
	return NewAssistantWithClient(openai.NewClient(apiKey), model, language)
}

// NewAssistantWithClient creates an Assistant over any chat completer
func NewAssistantWithClient(client ChatCompleter, model, language string) Assistant {
	if language == "" {
		language = "en"
	}
	return &openAIAssistant{client: client, model: model, language: language, now: time.Now}
}

func (a *openAIAssistant) Describe(ctx context.Context, query string) (Answer, error) {
	if a.client == nil {
		return Answer{}, ErrNotConfigured
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, ErrEmptyQuery
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Language: %s\nPlace: %s", a.language, query)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type:       openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &AnswerSchema,
		},
		Temperature: 0.3,
		MaxTokens:   600,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Answer{}, errors.New("no response from OpenAI API")
	}

	var parsed struct {
		Summary string   `json:"summary"`
		Facts   []string `json:"facts"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return Answer{}, fmt.Errorf("failed to parse OpenAI JSON response: %w", err)
	}
	if strings.TrimSpace(parsed.Summary) == "" {
		return Answer{}, fmt.Errorf("no information found about %q", query)
	}
	if len(parsed.Facts) > MaxFacts {
		parsed.Facts = parsed.Facts[:MaxFacts]
	}

	return Answer{
		Query:       query,
		Summary:     strings.TrimSpace(parsed.Summary),
		Facts:       parsed.Facts,
		Language:    a.language,
		GeneratedAt: a.now().UTC(),
	}, nil
}

// HealthCheck makes a minimal completion call
func (a *openAIAssistant) HealthCheck(ctx context.Context) error {
	if a.client == nil {
		return ErrNotConfigured
	}
	_, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     a.model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "Test"}},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("OpenAI API health check failed: %w", err)
	}
	return nil
}
