// Package gateway wraps the external generative service: session creation,
// turn exchange, structured memory extraction, and avatar generation. All
// failures crossing out of this package carry a user-safe message from the
// errs taxonomy.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shynlabs/shyn/internal/errs"
	"github.com/shynlabs/shyn/internal/history"
	"github.com/shynlabs/shyn/internal/persona"
	"github.com/shynlabs/shyn/internal/reaction"
	"github.com/shynlabs/shyn/internal/types"
)

// chatSession is one live model conversation.
type chatSession interface {
	send(ctx context.Context, parts []types.Part) (string, error)
}

// backend abstracts the text-generation provider.
type backend interface {
	startChat(ctx context.Context, instruction string, turns []types.SessionTurn) (chatSession, error)
	extract(ctx context.Context, prompt string) (string, error)
}

// imageBackend abstracts the image-generation provider.
type imageBackend interface {
	generateImage(ctx context.Context, prompt string) ([]byte, string, error)
}

// Config selects and configures the model backends.
type Config struct {
	Provider      string // "gemini" (default) or "openai"
	GoogleAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	ChatModel     string
	ImageModel    string
	AspectRatio   string
}

// Session is an ephemeral handle bound to one (user, mood) pair. It is
// destroyed and rebuilt whenever user, mood, or persona-relevant inputs
// change.
type Session struct {
	UserID int
	Mood   types.Mood
	chat   chatSession
}

// Reply is the typed response envelope for one turn: display text with
// the reaction marker already stripped, plus the decoded reaction if any.
type Reply struct {
	Text        string
	Reaction    types.Reaction
	HasReaction bool
}

// Gateway fronts the generative service.
type Gateway struct {
	backend backend
	images  imageBackend
}

// New builds a gateway from config. A missing credential is not an error
// here; it surfaces as a ConfigurationError on first use so the caller can
// show a setup-specific message in context.
func New(cfg Config) *Gateway {
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = "gemini-2.5-flash"
	}
	imageModel := cfg.ImageModel
	if imageModel == "" {
		imageModel = "imagen-4.0-generate-001"
	}

	gemini := newGeminiBackend(cfg.GoogleAPIKey, chatModel, imageModel, cfg.AspectRatio)

	g := &Gateway{images: gemini}
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		g.backend = newOpenAIBackend(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, chatModel)
	default:
		g.backend = gemini
	}
	return g
}

// CreateSession opens a model session for the (user, mood) pair, seeded
// with the persona instruction and the converted history. It also returns
// the opening greeting for sessions without prior history.
func (g *Gateway) CreateSession(ctx context.Context, user types.User, mood types.Mood, affection float64, messages []types.ChatMessage, memories []types.Memory) (*Session, string, error) {
	instruction := persona.BuildInstruction(mood, affection, user.Name, memories)
	turns := history.ToSessionTurns(messages)

	chat, err := g.backend.startChat(ctx, instruction, turns)
	if err != nil {
		if isCredentialError(err) {
			return nil, "", errs.Wrap(errs.KindConfiguration, msgConfigurationInit, err)
		}
		return nil, "", errs.Wrap(errs.KindInitialization, msgInitialization, err)
	}

	greeting := persona.Greeting(affection, user.Name)
	return &Session{UserID: user.ID, Mood: mood, chat: chat}, greeting, nil
}

// SendTurn sends one user turn. An attachment is decoded and sent as a
// binary part alongside any text; an undecodable attachment is dropped
// while the text part survives. The reply envelope carries the reaction
// already decoded and stripped.
func (g *Gateway) SendTurn(ctx context.Context, session *Session, text string, attachment *types.Attachment) (Reply, error) {
	if session == nil || session.chat == nil {
		return Reply{}, errs.New(errs.KindService, msgService)
	}

	var parts []types.Part
	if text != "" {
		parts = append(parts, types.Part{Text: text})
	}
	if attachment != nil {
		data, err := attachment.Payload()
		if err != nil {
			if len(parts) == 0 {
				return Reply{}, errs.Wrap(errs.KindMalformedAttachment, msgMalformedAttachment, err)
			}
			slog.Warn("dropping malformed attachment from turn",
				"attachment", attachment.Name, "error", err.Error())
		} else {
			parts = append(parts, types.Part{Data: data, MIMEType: attachment.Type})
		}
	}
	if len(parts) == 0 {
		return Reply{}, errs.New(errs.KindService, msgService)
	}

	raw, err := session.chat.send(ctx, parts)
	if err != nil {
		switch {
		case isCredentialError(err):
			return Reply{}, errs.Wrap(errs.KindConfiguration, msgConfigurationTurn, err)
		case isNetworkError(err):
			return Reply{}, errs.Wrap(errs.KindNetwork, msgNetwork, err)
		default:
			return Reply{}, errs.Wrap(errs.KindService, msgService, err)
		}
	}

	clean, decoded, ok := reaction.Decode(raw)
	return Reply{Text: clean, Reaction: decoded, HasReaction: ok}, nil
}

// extractionPromptTemplate asks for at most two new memories inferable
// from the user's message alone, as a JSON array of {topic, detail}.
const extractionPromptTemplate = `You are a memory extraction agent for a virtual companion AI. Your task is to analyze a user's message and identify new, core memories about them. The user's name is %[1]s.

A core memory is a significant piece of personal information like names (pets, family), important dates, hobbies, interests, likes/dislikes, goals, or details about their life.

From the user's message below, extract up to %[2]d new core memories.

User Message: %[3]q

Format your response as a JSON array of objects. Each object must have a "topic" (a short category, e.g., "Pet", "Hobby") and a "detail" (the specific information, phrased as a statement about the user e.g., "%[1]s has a cat named Luna.", "%[1]s enjoys hiking in the mountains.").

If no new, significant core memories about the user are mentioned, return an empty array: [].`

// ExtractMemories asks the model for memory candidates from a completed
// turn. It is best-effort: blank user text or any failure yields an empty
// result and nothing propagates to the caller.
func (g *Gateway) ExtractMemories(ctx context.Context, turn types.ConversationTurn, userName string) []types.MemoryCandidate {
	userMessage := strings.TrimSpace(turn.User.Text)
	if userMessage == "" {
		return nil
	}

	prompt := fmt.Sprintf(extractionPromptTemplate, userName, types.ExtractionBudget, userMessage)
	raw, err := g.backend.extract(ctx, prompt)
	if err != nil {
		slog.Error("memory extraction call failed", "error", err.Error())
		return nil
	}

	candidates, err := parseCandidates(raw)
	if err != nil {
		slog.Error("memory extraction returned malformed output", "error", err.Error())
		return nil
	}
	return candidates
}

// parseCandidates decodes the extraction output, accepting either a bare
// JSON array or an object wrapping it under "memories", and filters out
// entries with a blank topic or detail. Surrounding prose or code fences
// are sliced away before decoding.
func parseCandidates(raw string) ([]types.MemoryCandidate, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return nil, nil
	}
	if start := strings.IndexAny(clean, "[{"); start >= 0 {
		closer := "]"
		if clean[start] == '{' {
			closer = "}"
		}
		if end := strings.LastIndex(clean, closer); end > start {
			clean = clean[start : end+1]
		}
	}

	var parsed []types.MemoryCandidate
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		var wrapped struct {
			Memories []types.MemoryCandidate `json:"memories"`
		}
		if wrapErr := json.Unmarshal([]byte(clean), &wrapped); wrapErr != nil {
			return nil, fmt.Errorf("failed to parse extraction output: %w", err)
		}
		parsed = wrapped.Memories
	}

	results := make([]types.MemoryCandidate, 0, len(parsed))
	for _, candidate := range parsed {
		if strings.TrimSpace(candidate.Topic) == "" || strings.TrimSpace(candidate.Detail) == "" {
			continue
		}
		results = append(results, candidate)
	}
	return results, nil
}

// GenerateAvatar produces one portrait image for the given mood, style,
// and customization. Returns the raw image bytes and their MIME type.
func (g *Gateway) GenerateAvatar(ctx context.Context, mood types.Mood, appearance types.AppearanceName, customization types.AvatarCustomization) ([]byte, string, error) {
	prompt := persona.AvatarPrompt(mood, appearance, customization)

	data, mimeType, err := g.images.generateImage(ctx, prompt)
	if err != nil {
		if isCredentialError(err) {
			return nil, "", errs.Wrap(errs.KindConfiguration, msgGenerationConfig, err)
		}
		return nil, "", errs.Wrap(errs.KindGeneration, msgGeneration, err)
	}
	if len(data) == 0 {
		return nil, "", errs.New(errs.KindGeneration, msgGeneration)
	}
	return data, mimeType, nil
}
