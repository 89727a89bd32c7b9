package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/shynlabs/shyn/internal/types"
)

// geminiBackend serves chat, extraction, and image generation through the
// Gemini API. The client is created lazily so a missing key surfaces as a
// configuration error at session creation, not at startup.
type geminiBackend struct {
	apiKey      string
	chatModel   string
	imageModel  string
	aspectRatio string

	once    sync.Once
	client  *genai.Client
	initErr error
}

func newGeminiBackend(apiKey, chatModel, imageModel, aspectRatio string) *geminiBackend {
	return &geminiBackend{
		apiKey:      apiKey,
		chatModel:   chatModel,
		imageModel:  imageModel,
		aspectRatio: normalizeAspectRatio(aspectRatio),
	}
}

func (b *geminiBackend) ensureClient(ctx context.Context) (*genai.Client, error) {
	b.once.Do(func() {
		if strings.TrimSpace(b.apiKey) == "" {
			b.initErr = errMissingCredential
			return
		}
		b.client, b.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  b.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if b.initErr != nil {
			b.initErr = fmt.Errorf("failed to create genai client: %w", b.initErr)
		}
	})
	return b.client, b.initErr
}

func (b *geminiBackend) startChat(ctx context.Context, instruction string, turns []types.SessionTurn) (chatSession, error) {
	client, err := b.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
	}
	chat, err := client.Chats.Create(ctx, b.chatModel, config, toGenaiContents(turns))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}
	return &geminiChat{chat: chat}, nil
}

func (b *geminiBackend) extract(ctx context.Context, prompt string) (string, error) {
	client, err := b.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"topic":  {Type: genai.TypeString},
					"detail": {Type: genai.TypeString},
				},
			},
		},
	}
	resp, err := client.Models.GenerateContent(ctx, b.chatModel, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("extraction request failed: %w", err)
	}
	return resp.Text(), nil
}

func (b *geminiBackend) generateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	client, err := b.ensureClient(ctx)
	if err != nil {
		return nil, "", err
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
		ImageConfig: &genai.ImageConfig{
			AspectRatio: b.aspectRatio,
		},
	}
	resp, err := client.Models.GenerateContent(ctx, b.imageModel, genai.Text(prompt), config)
	if err != nil {
		return nil, "", fmt.Errorf("generate image: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil, "", fmt.Errorf("empty image response")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mimeType := strings.TrimSpace(part.InlineData.MIMEType)
		if mimeType == "" {
			mimeType = "image/png"
		}
		return part.InlineData.Data, mimeType, nil
	}
	return nil, "", fmt.Errorf("image data missing in response")
}

// geminiChat adapts genai.Chat to the chatSession interface.
type geminiChat struct {
	chat *genai.Chat
}

func (c *geminiChat) send(ctx context.Context, parts []types.Part) (string, error) {
	converted := make([]genai.Part, 0, len(parts))
	for _, part := range parts {
		if part.Text != "" {
			converted = append(converted, genai.Part{Text: part.Text})
			continue
		}
		if len(part.Data) > 0 {
			converted = append(converted, genai.Part{
				InlineData: &genai.Blob{Data: part.Data, MIMEType: part.MIMEType},
			})
		}
	}

	resp, err := c.chat.SendMessage(ctx, converted...)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.Text(), nil
}

func toGenaiContents(turns []types.SessionTurn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		parts := make([]*genai.Part, 0, len(turn.Parts))
		for _, part := range turn.Parts {
			if part.Text != "" {
				parts = append(parts, &genai.Part{Text: part.Text})
				continue
			}
			if len(part.Data) > 0 {
				parts = append(parts, &genai.Part{
					InlineData: &genai.Blob{Data: part.Data, MIMEType: part.MIMEType},
				})
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.Role(turn.Role)))
	}
	return contents
}

func normalizeAspectRatio(value string) string {
	value = strings.TrimSpace(value)
	switch value {
	case "1:1", "3:4", "4:3", "9:16", "16:9":
		return value
	default:
		return "3:4"
	}
}
