package collectibles

import (
	"slices"
	"testing"
	"time"
)

func TestParsePath(t *testing.T) {
	for raw, want := range map[string]Path{"": PathRecent, "Recent": PathRecent, " mycollection ": PathMyCollection} {
		got, err := ParsePath(raw)
		if err != nil || got != want {
			t.Fatalf("ParsePath(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParsePath("trending"); err == nil {
		t.Fatalf("expected error for unknown path")
	}
}

func TestMockItems(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := MockItems(PathRecent, now)
	if len(recent) != 5 {
		t.Fatalf("expected 5 mock items, got %d", len(recent))
	}
	first := recent[0]
	if first.ID != "0x1234567890abcdef" || first.Author == nil || first.Author.Username != "alice" {
		t.Fatalf("unexpected first item %+v", first)
	}
	if *first.Timestamp != now.Add(-30*time.Minute).UnixMilli() {
		t.Fatalf("unexpected timestamp %d", *first.Timestamp)
	}
	if !slices.Contains(first.Tags, "channel:art") || !slices.Contains(first.Tags, "art") {
		t.Fatalf("expected channel and art tags, got %v", first.Tags)
	}
	if first.Title == "" || len([]rune(first.Title)) > 60 {
		t.Fatalf("expected a short title from the cast text, got %q", first.Title)
	}

	mine := MockItems(PathMyCollection, now)
	if mine[0].Reactions.Likes != 99 || mine[0].Reactions.Recasts != 22 || mine[0].Reactions.Replies != 15 {
		t.Fatalf("unexpected scaled reactions %+v", mine[0].Reactions)
	}
	if recent[0].Reactions.Likes != 142 {
		t.Fatalf("recent path must keep original reactions")
	}
}
