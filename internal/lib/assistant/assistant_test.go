package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dpup/prefab/logging"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dpup/mapweather/server/internal/cache"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func completion(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

const kyivAnswer = `{"summary":"Kyiv is the capital of Ukraine.","facts":["Founded in the 5th century.","Sits on the Dnipro.","Home to Saint Sophia Cathedral.","Extra fact."]}`

func TestDescribe(t *testing.T) {
	client := &mockCompleter{}
	client.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.Model == "gpt-4o-mini" &&
			len(req.Messages) == 2 &&
			req.Messages[1].Content == "Language: uk\nPlace: Kyiv" &&
			req.ResponseFormat.JSONSchema.Name == "place_description"
	})).Return(completion(kyivAnswer), nil).Once()

	a := NewAssistantWithClient(client, "gpt-4o-mini", "uk")
	answer, err := a.Describe(logging.EnsureLogger(context.Background()), "  Kyiv ")

	require.NoError(t, err)
	assert.Equal(t, "Kyiv", answer.Query)
	assert.Equal(t, "Kyiv is the capital of Ukraine.", answer.Summary)
	assert.Len(t, answer.Facts, MaxFacts)
	assert.Equal(t, "uk", answer.Language)
	assert.False(t, answer.Cached)
	client.AssertExpectations(t)
}

func TestDescribe_Errors(t *testing.T) {
	_, err := NewAssistant("", "gpt-4o-mini", "en").Describe(logging.EnsureLogger(context.Background()), "Kyiv")
	assert.ErrorIs(t, err, ErrNotConfigured)

	client := &mockCompleter{}
	a := NewAssistantWithClient(client, "m", "en")
	_, err = a.Describe(logging.EnsureLogger(context.Background()), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, errors.New("429 Too Many Requests")).Once()
	_, err = a.Describe(logging.EnsureLogger(context.Background()), "Kyiv")
	assert.Contains(t, err.Error(), "OpenAI API error")

	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(completion("not json"), nil).Once()
	_, err = a.Describe(logging.EnsureLogger(context.Background()), "Kyiv")
	assert.Contains(t, err.Error(), "failed to parse")

	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(completion(`{"summary":"","facts":[]}`), nil).Once()
	_, err = a.Describe(logging.EnsureLogger(context.Background()), "Kyiv")
	assert.Contains(t, err.Error(), "no information found")
}

func TestHashQuery_Normalizes(t *testing.T) {
	assert.Equal(t, HashQuery("Kyiv"), HashQuery("  kyiv? "))
	assert.Equal(t, HashQuery("Mount   Everest"), HashQuery("mount everest!"))
	assert.NotEqual(t, HashQuery("Kyiv"), HashQuery("Lviv"))
	assert.Equal(t, "new york city", NormalizeQuery("New-York, City."))
}

func TestCachedAssistant(t *testing.T) {
	client := &mockCompleter{}
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(completion(kyivAnswer), nil).Once()

	c := NewCachedAssistant(NewAssistantWithClient(client, "m", "en"), cache.NewCache(), time.Hour)
	ctx := logging.EnsureLogger(context.Background())

	first, err := c.Describe(ctx, "Kyiv")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := c.Describe(ctx, "kyiv!")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Summary, second.Summary)

	client.AssertNumberOfCalls(t, "CreateChatCompletion", 1)
}

func TestCachedAssistant_ErrorsAreNotCached(t *testing.T) {
	client := &mockCompleter{}
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, errors.New("timeout")).Once()
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(completion(kyivAnswer), nil).Once()

	c := NewCachedAssistant(NewAssistantWithClient(client, "m", "en"), cache.NewCache(), time.Hour)

	_, err := c.Describe(logging.EnsureLogger(context.Background()), "Kyiv")
	require.Error(t, err)

	answer, err := c.Describe(logging.EnsureLogger(context.Background()), "Kyiv")
	require.NoError(t, err)
	assert.False(t, answer.Cached)
}
