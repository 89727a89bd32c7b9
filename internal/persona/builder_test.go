package persona

import (
	"strings"
	"testing"
	"time"

	"github.com/shynlabs/shyn/internal/types"
)

func TestBuildInstructionAcquaintanceTier(t *testing.T) {
	got := BuildInstruction(types.MoodCheerful, 15, "Demo User", nil)
	if !strings.Contains(got, "just getting to know Demo User") {
		t.Fatalf("expected acquaintance directive, got:\n%s", got)
	}
	if strings.Contains(got, "Remember these key things") {
		t.Fatalf("memory block must be absent with no memories")
	}
	if !strings.Contains(got, "cheerful and optimistic") {
		t.Fatalf("expected cheerful mood directive")
	}
	if !strings.Contains(got, "[reaction:TYPE]") {
		t.Fatalf("reaction protocol block missing")
	}
}

func TestBuildInstructionTierBoundaries(t *testing.T) {
	cases := []struct {
		affection float64
		want      string
	}{
		{24.9, "just getting to know"},
		{25, "becoming close"},
		{74.9, "becoming close"},
		{75, "deeply bonded"},
		{100, "deeply bonded"},
	}
	for _, tc := range cases {
		got := BuildInstruction(types.MoodPlayful, tc.affection, "Alex", nil)
		if !strings.Contains(got, tc.want) {
			t.Fatalf("affection %.1f: expected %q tier", tc.affection, tc.want)
		}
	}
}

func TestBuildInstructionMemoryBlock(t *testing.T) {
	memories := []types.Memory{
		{ID: "1", Topic: "Pet", Detail: "Alex has a cat named Luna.", Timestamp: time.Now()},
		{ID: "2", Topic: "Hobby", Detail: "Alex enjoys hiking in the mountains.", Timestamp: time.Now()},
	}
	got := BuildInstruction(types.MoodThoughtful, 50, "Alex", memories)
	if !strings.Contains(got, "Remember these key things about Alex") {
		t.Fatalf("memory block header missing")
	}
	if !strings.Contains(got, "- Alex has a cat named Luna.") {
		t.Fatalf("memory bullet missing")
	}
}

func TestBuildInstructionUnknownMoodFallsBack(t *testing.T) {
	got := BuildInstruction(types.Mood("Grumpy"), 15, "Alex", nil)
	if !strings.Contains(got, "cheerful and optimistic") {
		t.Fatalf("unknown mood must fall back to the Cheerful directive")
	}
}

func TestGreetingTiers(t *testing.T) {
	if g := Greeting(15, "Alex"); !strings.Contains(g, "Hey Alex!") {
		t.Fatalf("unexpected acquaintance greeting: %q", g)
	}
	if g := Greeting(40, "Alex"); !strings.Contains(g, "There you are, Alex!") {
		t.Fatalf("unexpected warming greeting: %q", g)
	}
	if g := Greeting(80, "Alex"); !strings.Contains(g, "My favorite person, Alex!") {
		t.Fatalf("unexpected intimate greeting: %q", g)
	}
}

func TestAvatarPromptAssembly(t *testing.T) {
	prompt := AvatarPrompt(types.MoodPlayful, types.AppearanceCyberpunk, types.AvatarCustomization{
		HairColor: "silver",
		Clothing:  "a leather jacket",
	})
	if !strings.Contains(prompt, "Style: Cyberpunk.") {
		t.Fatalf("style block missing")
	}
	if !strings.Contains(prompt, "Custom details: her hair color is silver, she is wearing a leather jacket.") {
		t.Fatalf("customization fragment wrong:\n%s", prompt)
	}
	if !strings.Contains(prompt, "mischievous, playful smirk") {
		t.Fatalf("mood expression missing")
	}
}

func TestAvatarPromptOmitsEmptyCustomization(t *testing.T) {
	prompt := AvatarPrompt(types.MoodCheerful, types.AppearanceDefault, types.AvatarCustomization{})
	if strings.Contains(prompt, "Custom details:") {
		t.Fatalf("empty customization must be omitted")
	}
	if !strings.Contains(prompt, "Natural & Photorealistic") {
		t.Fatalf("default style block missing")
	}
}
