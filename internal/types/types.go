// Package types holds the shared domain model for the SHYN companion service.
package types

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Mood is one of SHYN's fixed persona variants. Session state (history,
// affection, active model session) is scoped per (user, mood) pair.
type Mood string

const (
	MoodCheerful   Mood = "Cheerful"
	MoodThoughtful Mood = "Thoughtful"
	MoodPlayful    Mood = "Playful"
)

// Moods lists every valid mood.
var Moods = []Mood{MoodCheerful, MoodThoughtful, MoodPlayful}

// ParseMood returns the mood matching s, case-insensitively.
func ParseMood(s string) (Mood, bool) {
	for _, m := range Moods {
		if strings.EqualFold(string(m), s) {
			return m, true
		}
	}
	return "", false
}

// Decays reports whether idle affection decay applies to the mood.
// Cheerful never decays.
func (m Mood) Decays() bool {
	return m == MoodThoughtful || m == MoodPlayful
}

// Reaction is a one-shot animation cue decoded from an AI reply. Not persisted.
type Reaction string

const (
	ReactionHeart     Reaction = "HEART"
	ReactionLaugh     Reaction = "LAUGH"
	ReactionSurprise  Reaction = "SURPRISE"
	ReactionCelebrate Reaction = "CELEBRATE"
)

// Affection bounds and tuning. Values are persisted per (user, mood).
const (
	AffectionFloor   = 15.0
	AffectionCap     = 100.0
	AffectionStep    = 2.0
	AffectionDecay   = 0.5
	DecayTickPeriod  = 30 * time.Second
	RecentMemoryMax  = 5
	ExtractionBudget = 2
)

// MaxAttachmentBytes caps the decoded size of an accepted attachment.
const MaxAttachmentBytes = 5 << 20

// Attachment is a self-describing inline-encoded binary payload carried
// end-to-end as a data URL ("data:<mime>;base64,<payload>").
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Payload decodes the attachment's data URL into raw bytes.
func (a Attachment) Payload() ([]byte, error) {
	_, encoded, found := strings.Cut(a.URL, ",")
	if !found || encoded == "" {
		return nil, fmt.Errorf("attachment %q: not a data URL", a.Name)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("attachment %q: decode payload: %w", a.Name, err)
	}
	return data, nil
}

// EncodedSize returns an upper bound on the decoded payload size without
// decoding, so oversized uploads can be rejected before any work is done.
func (a Attachment) EncodedSize() int {
	_, encoded, found := strings.Cut(a.URL, ",")
	if !found {
		return 0
	}
	return base64.StdEncoding.DecodedLen(len(encoded))
}

// ChatMessage is one conversational turn.
type ChatMessage struct {
	Sender     Sender      `json:"sender"`
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Mood       Mood        `json:"mood"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ConversationTurn pairs a user message with the AI reply it produced.
type ConversationTurn struct {
	User ChatMessage
	AI   ChatMessage
}

// Memory is an extracted long-term fact about the user. Append-only,
// deduplicated at insertion, never mutated.
type Memory struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// MemoryCandidate is an unsaved extraction result.
type MemoryCandidate struct {
	Topic  string `json:"topic"`
	Detail string `json:"detail"`
}

// Part is one piece of a model turn: text, inline binary data, or both
// never at once.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// SessionTurn is the backend-neutral role/parts form of a stored message,
// produced by the history codec and consumed by the model backends.
type SessionTurn struct {
	Role  string // "user" or "model"
	Parts []Part
}

// AppearanceName selects one of the fixed avatar style blocks.
type AppearanceName string

const (
	AppearanceDefault   AppearanceName = "Default"
	AppearanceCyberpunk AppearanceName = "Cyberpunk"
	AppearanceFantasy   AppearanceName = "Fantasy"
	AppearanceGothic    AppearanceName = "Gothic"
	AppearanceAnime     AppearanceName = "Anime"
)

// AvatarCustomization holds optional free-text avatar fragments. Empty
// fields are omitted from the generation prompt.
type AvatarCustomization struct {
	Hairstyle string `json:"hairstyle,omitempty"`
	HairColor string `json:"hair_color,omitempty"`
	EyeColor  string `json:"eye_color,omitempty"`
	Clothing  string `json:"clothing,omitempty"`
	Accessory string `json:"accessory,omitempty"`
}

// User is an account record, consumed read-only by the presentation layer.
// ID and Name feed the conversation core.
type User struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	AvatarURL  string `json:"avatar_url"`
	LastActive string `json:"last_active"`
	Status     string `json:"status"`
}

// AdminStats is the aggregate shown on the admin dashboard.
type AdminStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Admins int `json:"admins"`
}

// ActivityPoint is one day of user activity.
type ActivityPoint struct {
	Date  string `json:"date"`
	Users int    `json:"users"`
}
