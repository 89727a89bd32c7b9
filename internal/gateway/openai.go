package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/shynlabs/shyn/internal/types"
)

// openaiBackend serves chat and extraction through an OpenAI-compatible
// API. Completion APIs carry no server-side session, so the message list
// is kept client-side and replayed each turn. Avatar generation stays on
// the Gemini backend.
type openaiBackend struct {
	apiKey  string
	baseURL string
	model   string

	once    sync.Once
	client  *openai.Client
	initErr error
}

func newOpenAIBackend(apiKey, baseURL, model string) *openaiBackend {
	return &openaiBackend{apiKey: apiKey, baseURL: baseURL, model: model}
}

func (b *openaiBackend) ensureClient(_ context.Context) (*openai.Client, error) {
	b.once.Do(func() {
		if strings.TrimSpace(b.apiKey) == "" {
			b.initErr = errMissingCredential
			return
		}
		opts := []option.RequestOption{option.WithAPIKey(b.apiKey)}
		if b.baseURL != "" {
			opts = append(opts, option.WithBaseURL(b.baseURL))
		}
		client := openai.NewClient(opts...)
		b.client = &client
	})
	return b.client, b.initErr
}

func (b *openaiBackend) startChat(ctx context.Context, instruction string, turns []types.SessionTurn) (chatSession, error) {
	client, err := b.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	messages = append(messages, openai.SystemMessage(instruction))
	for _, turn := range turns {
		msg, ok := turnToMessage(turn)
		if !ok {
			continue
		}
		messages = append(messages, msg)
	}

	return &openaiChat{create: client.Chat.Completions.New, model: b.model, messages: messages}, nil
}

// extractionSchema constrains the structured extraction response. The
// completion API requires an object root, so the array is wrapped under
// a "memories" key.
var extractionSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"memories": {
			Type: "array",
			Items: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"topic":  {Type: "string"},
					"detail": {Type: "string"},
				},
				Required: []string{"topic", "detail"},
			},
		},
	},
	Required: []string{"memories"},
}

func (b *openaiBackend) extract(ctx context.Context, prompt string) (string, error) {
	client, err := b.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	schemaJSON, err := json.Marshal(extractionSchema)
	if err != nil {
		return "", fmt.Errorf("failed to encode extraction schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return "", fmt.Errorf("failed to decode extraction schema: %w", err)
	}

	params := openai.ChatCompletionNewParams{
		Model:    b.model,
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "memories",
					Schema: schemaMap,
				},
			},
		},
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("extraction request failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty extraction response")
	}
	return resp.Choices[0].Message.Content, nil
}

// openaiChat adapts the completion API to the chatSession interface.
type openaiChat struct {
	create   func(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
	model    string
	messages []openai.ChatCompletionMessageParamUnion
}

func (c *openaiChat) send(ctx context.Context, parts []types.Part) (string, error) {
	msg, ok := partsToUserMessage(parts)
	if !ok {
		return "", fmt.Errorf("turn has no sendable parts")
	}
	c.messages = append(c.messages, msg)

	resp, err := c.create(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: c.messages,
	})
	if err != nil {
		// Roll back the optimistic append so a retried turn does not
		// replay this user message twice.
		c.messages = c.messages[:len(c.messages)-1]
		return "", fmt.Errorf("send message: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		c.messages = c.messages[:len(c.messages)-1]
		return "", fmt.Errorf("empty completion response")
	}

	content := resp.Choices[0].Message.Content
	c.messages = append(c.messages, openai.AssistantMessage(content))
	return content, nil
}

func turnToMessage(turn types.SessionTurn) (openai.ChatCompletionMessageParamUnion, bool) {
	if turn.Role == "model" {
		var sb strings.Builder
		for _, part := range turn.Parts {
			sb.WriteString(part.Text)
		}
		if sb.Len() == 0 {
			return openai.ChatCompletionMessageParamUnion{}, false
		}
		return openai.AssistantMessage(sb.String()), true
	}
	return partsToUserMessage(turn.Parts)
}

func partsToUserMessage(parts []types.Part) (openai.ChatCompletionMessageParamUnion, bool) {
	var content []openai.ChatCompletionContentPartUnionParam
	for _, part := range parts {
		if part.Text != "" {
			content = append(content, openai.TextContentPart(part.Text))
			continue
		}
		if len(part.Data) > 0 {
			url := fmt.Sprintf("data:%s;base64,%s", part.MIMEType, base64.StdEncoding.EncodeToString(part.Data))
			content = append(content, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
		}
	}
	if len(content) == 0 {
		return openai.ChatCompletionMessageParamUnion{}, false
	}
	// A single text part stays a plain string message.
	if len(content) == 1 && content[0].OfText != nil {
		return openai.UserMessage(content[0].OfText.Text), true
	}
	return openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfArrayOfContentParts: content,
			},
		},
	}, true
}
