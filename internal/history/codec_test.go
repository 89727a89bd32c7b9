package history

import (
	"encoding/base64"
	"testing"

	"github.com/shynlabs/shyn/internal/types"
)

func dataURL(mime string, payload []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(payload)
}

func TestToSessionTurnsRolesAndText(t *testing.T) {
	turns := ToSessionTurns([]types.ChatMessage{
		{Sender: types.SenderUser, Text: "Hi", Mood: types.MoodCheerful},
		{Sender: types.SenderAI, Text: "[reaction:HEART]Hello!", Mood: types.MoodCheerful},
	})
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != "user" || turns[1].Role != "model" {
		t.Fatalf("unexpected roles: %s/%s", turns[0].Role, turns[1].Role)
	}
	if turns[1].Parts[0].Text != "Hello!" {
		t.Fatalf("reaction marker must be stripped, got %q", turns[1].Parts[0].Text)
	}
}

func TestToSessionTurnsStripIsIdempotent(t *testing.T) {
	msgs := []types.ChatMessage{
		{Sender: types.SenderAI, Text: "[reaction:LAUGH]So funny"},
	}
	first := ToSessionTurns(msgs)
	// Re-encode the stripped text as if it had been stored again.
	second := ToSessionTurns([]types.ChatMessage{
		{Sender: types.SenderAI, Text: first[0].Parts[0].Text},
	})
	if second[0].Parts[0].Text != "So funny" {
		t.Fatalf("double encoding must not mangle text: %q", second[0].Parts[0].Text)
	}
}

func TestToSessionTurnsAttachment(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	msgs := []types.ChatMessage{
		{
			Sender: types.SenderUser,
			Text:   "look at this",
			Attachment: &types.Attachment{
				Name: "pic.png",
				Type: "image/png",
				URL:  dataURL("image/png", payload),
			},
		},
	}
	turns := ToSessionTurns(msgs)
	if len(turns) != 1 || len(turns[0].Parts) != 2 {
		t.Fatalf("expected one turn with two parts, got %#v", turns)
	}
	blob := turns[0].Parts[1]
	if blob.MIMEType != "image/png" || string(blob.Data) != string(payload) {
		t.Fatalf("attachment part wrong: %#v", blob)
	}
}

func TestToSessionTurnsMalformedAttachmentKeepsText(t *testing.T) {
	msgs := []types.ChatMessage{
		{
			Sender:     types.SenderUser,
			Text:       "broken upload",
			Attachment: &types.Attachment{Name: "x.bin", Type: "application/octet-stream", URL: "data:application/octet-stream;base64,!!!not-base64!!!"},
		},
	}
	turns := ToSessionTurns(msgs)
	if len(turns) != 1 || len(turns[0].Parts) != 1 {
		t.Fatalf("expected text-only turn, got %#v", turns)
	}
	if turns[0].Parts[0].Text != "broken upload" {
		t.Fatalf("text part must survive a bad attachment")
	}
}

func TestToSessionTurnsDropsEmptyTurns(t *testing.T) {
	msgs := []types.ChatMessage{
		{Sender: types.SenderAI, Text: ""},
		{
			Sender:     types.SenderUser,
			Text:       "",
			Attachment: &types.Attachment{Name: "x", Type: "image/png", URL: "no-comma-here"},
		},
		{Sender: types.SenderUser, Text: "kept"},
	}
	turns := ToSessionTurns(msgs)
	if len(turns) != 1 || turns[0].Parts[0].Text != "kept" {
		t.Fatalf("empty turns must be dropped, got %#v", turns)
	}
}
