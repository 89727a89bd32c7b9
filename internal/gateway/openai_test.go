package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/shynlabs/shyn/internal/types"
)

func newStubOpenAIChat(create func(openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)) *openaiChat {
	return &openaiChat{
		create: func(_ context.Context, params openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
			return create(params)
		},
		model:    "test-model",
		messages: []openai.ChatCompletionMessageParamUnion{openai.SystemMessage("instruction")},
	}
}

func completionWith(text string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: text}},
		},
	}
}

func TestOpenAIChatSendAppendsBothSides(t *testing.T) {
	chat := newStubOpenAIChat(func(params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
		if len(params.Messages) != 2 {
			t.Fatalf("request carried %d messages, want system + user", len(params.Messages))
		}
		return completionWith("hello back"), nil
	})

	got, err := chat.send(context.Background(), []types.Part{{Text: "hello"}})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got != "hello back" {
		t.Fatalf("reply = %q", got)
	}
	if len(chat.messages) != 3 {
		t.Fatalf("messages after send = %d, want system + user + assistant", len(chat.messages))
	}
}

func TestOpenAIChatSendRollsBackOnError(t *testing.T) {
	calls := 0
	chat := newStubOpenAIChat(func(params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("upstream unavailable")
		}
		if len(params.Messages) != 2 {
			t.Fatalf("retry carried %d messages, want system + user", len(params.Messages))
		}
		return completionWith("second time lucky"), nil
	})

	if _, err := chat.send(context.Background(), []types.Part{{Text: "hello"}}); err == nil {
		t.Fatal("expected error from first send")
	}
	if len(chat.messages) != 1 {
		t.Fatalf("messages after failed send = %d, want system only", len(chat.messages))
	}

	got, err := chat.send(context.Background(), []types.Part{{Text: "hello"}})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got != "second time lucky" {
		t.Fatalf("reply = %q", got)
	}
}

func TestOpenAIChatSendRollsBackOnEmptyResponse(t *testing.T) {
	chat := newStubOpenAIChat(func(openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
		return &openai.ChatCompletion{}, nil
	})

	if _, err := chat.send(context.Background(), []types.Part{{Text: "hello"}}); err == nil {
		t.Fatal("expected error for empty completion")
	}
	if len(chat.messages) != 1 {
		t.Fatalf("messages after empty response = %d, want system only", len(chat.messages))
	}
}
