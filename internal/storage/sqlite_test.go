package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shynlabs/shyn/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), "", filepath.Join(t.TempDir(), "shyn.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAffectionScopedPerUserAndMood(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Affection.Set(ctx, 1, types.MoodCheerful, 42); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, err := store.Affection.Get(ctx, 1, types.MoodCheerful)
	if err != nil || got != 42 {
		t.Fatalf("expected 42, got %v (%v)", got, err)
	}

	// Same user, different mood: a distinct thread with the default floor.
	got, err = store.Affection.Get(ctx, 1, types.MoodPlayful)
	if err != nil || got != types.AffectionFloor {
		t.Fatalf("expected floor for fresh mood, got %v (%v)", got, err)
	}

	// Different user entirely.
	got, err = store.Affection.Get(ctx, 2, types.MoodCheerful)
	if err != nil || got != types.AffectionFloor {
		t.Fatalf("expected floor for fresh user, got %v (%v)", got, err)
	}
}

func TestAffectionSetOverwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Affection.Set(ctx, 1, types.MoodThoughtful, 20); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Affection.Set(ctx, 1, types.MoodThoughtful, 19.5); err != nil {
		t.Fatalf("second set failed: %v", err)
	}
	got, err := store.Affection.Get(ctx, 1, types.MoodThoughtful)
	if err != nil || got != 19.5 {
		t.Fatalf("expected 19.5, got %v (%v)", got, err)
	}
}

func TestHistoryScopedPerMood(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	msgs := []types.ChatMessage{
		{Sender: types.SenderUser, Text: "hello cheerful", Mood: types.MoodCheerful, CreatedAt: now},
		{Sender: types.SenderAI, Text: "hi there!", Mood: types.MoodCheerful, CreatedAt: now.Add(time.Second)},
		{Sender: types.SenderUser, Text: "hello playful", Mood: types.MoodPlayful, CreatedAt: now},
	}
	for _, msg := range msgs {
		if err := store.History.AppendMessage(ctx, 1, msg); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	cheerful, err := store.History.Messages(ctx, 1, types.MoodCheerful)
	if err != nil {
		t.Fatalf("messages failed: %v", err)
	}
	if len(cheerful) != 2 || cheerful[0].Text != "hello cheerful" || cheerful[1].Text != "hi there!" {
		t.Fatalf("unexpected cheerful thread: %#v", cheerful)
	}

	playful, err := store.History.Messages(ctx, 1, types.MoodPlayful)
	if err != nil || len(playful) != 1 {
		t.Fatalf("unexpected playful thread: %#v (%v)", playful, err)
	}
}

func TestHistoryAttachmentRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	att := &types.Attachment{Name: "pic.png", Type: "image/png", URL: "data:image/png;base64,iVBORw0KGgo="}
	msg := types.ChatMessage{Sender: types.SenderUser, Text: "look", Attachment: att, Mood: types.MoodCheerful, CreatedAt: time.Now()}
	if err := store.History.AppendMessage(ctx, 1, msg); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	got, err := store.History.Messages(ctx, 1, types.MoodCheerful)
	if err != nil || len(got) != 1 {
		t.Fatalf("messages failed: %#v (%v)", got, err)
	}
	if got[0].Attachment == nil || got[0].Attachment.URL != att.URL || got[0].Attachment.Type != "image/png" {
		t.Fatalf("attachment did not round-trip: %#v", got[0].Attachment)
	}
}

func TestMemoryInsertAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mem := types.Memory{ID: "m1", Topic: "Pet", Detail: "Has a cat named Luna.", Timestamp: time.Now()}
	if err := store.Memories.Insert(ctx, 1, mem, nil); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	got, err := store.Memories.ForUser(ctx, 1)
	if err != nil || len(got) != 1 || got[0].Detail != "Has a cat named Luna." {
		t.Fatalf("unexpected memories: %#v (%v)", got, err)
	}

	other, err := store.Memories.ForUser(ctx, 2)
	if err != nil || len(other) != 0 {
		t.Fatalf("memories leaked across users: %#v (%v)", other, err)
	}
}

func TestSQLiteSimilaritySearchUnsupported(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Memories.SearchSimilar(context.Background(), 1, []float32{0.1}, 5)
	if err != ErrUnsupported {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestUsersSeeded(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	me, err := store.Users.Me(ctx)
	if err != nil || me.Name != "Demo User" {
		t.Fatalf("unexpected current user: %#v (%v)", me, err)
	}

	stats, err := store.Users.AdminStats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 4 || stats.Active != 2 || stats.Admins != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}
