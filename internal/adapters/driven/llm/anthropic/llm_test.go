package anthropic

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	calls      int
	resp       *sdk.Message
	err        error
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	s.calls++
	return s.resp, s.err
}

func textMessage(parts ...string) *sdk.Message {
	msg := &sdk.Message{}
	for _, p := range parts {
		msg.Content = append(msg.Content, sdk.ContentBlockUnion{Type: "text", Text: p})
	}
	return msg
}

func TestNewLLMService_RequiresAPIKey(t *testing.T) {
	_, err := NewLLMService(Config{})
	assert.ErrorContains(t, err, "API key is required")
}

func TestNewLLMService_Defaults(t *testing.T) {
	svc, err := NewLLMService(Config{APIKey: "sk-ant-test"})
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.NoError(t, svc.Close())
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil, "m")
	assert.Error(t, err)
}

func TestLLMService_Generate(t *testing.T) {
	stub := &stubMessagesClient{resp: textMessage(`{"endpoint":`, `"/issues"}`)}
	svc, err := New(stub, "claude-test")
	require.NoError(t, err)

	text, err := svc.Generate(context.Background(), "pick a call", driven.GenerateOptions{
		MaxTokens:   500,
		Temperature: 0.2,
		StopWords:   []string{"\n\n"},
	})

	require.NoError(t, err)
	assert.Equal(t, `{"endpoint":"/issues"}`, text)
	assert.Equal(t, sdk.Model("claude-test"), stub.lastParams.Model)
	assert.Equal(t, int64(500), stub.lastParams.MaxTokens)
	assert.Equal(t, []string{"\n\n"}, stub.lastParams.StopSequences)
	require.Len(t, stub.lastParams.Messages, 1)
}

func TestLLMService_Generate_DefaultMaxTokens(t *testing.T) {
	stub := &stubMessagesClient{resp: textMessage("ok")}
	svc, err := New(stub, "")
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), "hi", driven.GenerateOptions{})

	require.NoError(t, err)
	assert.Equal(t, int64(DefaultMaxTokens), stub.lastParams.MaxTokens)
}

func TestLLMService_Generate_Errors(t *testing.T) {
	tests := []struct {
		name string
		stub *stubMessagesClient
		want string
	}{
		{name: "transport", stub: &stubMessagesClient{err: errors.New("overloaded")}, want: "overloaded"},
		{name: "nil message", stub: &stubMessagesClient{}, want: "nil"},
		{name: "no text", stub: &stubMessagesClient{resp: &sdk.Message{}}, want: "no text content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := New(tt.stub, "m")
			require.NoError(t, err)

			_, err = svc.Generate(context.Background(), "hi", driven.GenerateOptions{})
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLLMService_Ping(t *testing.T) {
	stub := &stubMessagesClient{resp: textMessage("pong")}
	svc, err := New(stub, "m")
	require.NoError(t, err)

	require.NoError(t, svc.Ping(context.Background()))
	assert.Equal(t, int64(1), stub.lastParams.MaxTokens)

	stub.err = errors.New("invalid x-api-key")
	assert.ErrorContains(t, svc.Ping(context.Background()), "invalid x-api-key")
}
