package openai

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

type mockChatClient struct {
	lastParams sdk.ChatCompletionNewParams
	resp       *sdk.ChatCompletion
	err        error
}

func (m *mockChatClient) New(_ context.Context, body sdk.ChatCompletionNewParams, _ ...option.RequestOption) (*sdk.ChatCompletion, error) {
	m.lastParams = body
	return m.resp, m.err
}

func completion(content string) *sdk.ChatCompletion {
	return &sdk.ChatCompletion{
		Choices: []sdk.ChatCompletionChoice{
			{Message: sdk.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestNewLLMService_RequiresAPIKey(t *testing.T) {
	_, err := NewLLMService(LLMConfig{})
	assert.ErrorContains(t, err, "API key is required")
}

func TestNewLLMService_Defaults(t *testing.T) {
	svc, err := NewLLMService(LLMConfig{APIKey: "sk-test", BaseURL: "http://localhost:8000/v1"})
	require.NoError(t, err)

	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.NoError(t, svc.Close())
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil, "m")
	assert.Error(t, err)
}

func TestLLMService_Generate(t *testing.T) {
	chat := &mockChatClient{resp: completion(`{"endpoint":"/issues"}`)}
	svc, err := New(chat, "gpt-test")
	require.NoError(t, err)

	text, err := svc.Generate(context.Background(), "pick a call", driven.GenerateOptions{
		MaxTokens:   1000,
		Temperature: 0.1,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"endpoint":"/issues"}`, text)
	assert.Equal(t, sdk.ChatModel("gpt-test"), chat.lastParams.Model)
	assert.Equal(t, int64(1000), chat.lastParams.MaxTokens.Value)
	assert.InDelta(t, 0.1, chat.lastParams.Temperature.Value, 1e-9)
	require.Len(t, chat.lastParams.Messages, 1)
	assert.NotNil(t, chat.lastParams.Messages[0].OfUser)
}

func TestLLMService_Generate_Errors(t *testing.T) {
	tests := []struct {
		name string
		chat *mockChatClient
		want string
	}{
		{name: "transport", chat: &mockChatClient{err: errors.New("429 too many requests")}, want: "429"},
		{name: "nil response", chat: &mockChatClient{}, want: "no choices"},
		{name: "empty choices", chat: &mockChatClient{resp: &sdk.ChatCompletion{}}, want: "no choices"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := New(tt.chat, "m")
			require.NoError(t, err)

			_, err = svc.Generate(context.Background(), "hi", driven.GenerateOptions{})
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLLMService_Ping(t *testing.T) {
	chat := &mockChatClient{resp: completion("pong")}
	svc, err := New(chat, "m")
	require.NoError(t, err)

	require.NoError(t, svc.Ping(context.Background()))
	assert.Equal(t, int64(1), chat.lastParams.MaxTokens.Value)

	chat.err = errors.New("invalid api key")
	assert.ErrorContains(t, svc.Ping(context.Background()), "invalid api key")
}
