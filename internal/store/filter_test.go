package store

import (
	"strings"
	"testing"
	"time"
)

func TestFilterConditionsAreConjoined(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
	conditions, args := storyFilterConditions(StoryFilter{
		Assignee:  "bob",
		Status:    "Done",
		Tag:       "auth",
		CreatedBy: "alice",
		StartDate: &start,
		EndDate:   &end,
	})

	if len(conditions) != 6 || len(args) != 6 {
		t.Fatalf("expected 6 conditions and args, got %d and %d", len(conditions), len(args))
	}
	joined := strings.Join(conditions, " AND ")
	for _, want := range []string{
		"assignee = $1",
		"status = $2",
		"tags ILIKE '%' || $3 || '%'",
		"created_by = $4",
		"created_on >= $5",
		"created_on <= $6",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("conditions missing %q in %q", want, joined)
		}
	}
}

func TestFilterNoPredicates(t *testing.T) {
	conditions, args := storyFilterConditions(StoryFilter{})
	if len(conditions) != 0 || len(args) != 0 {
		t.Fatalf("expected no conditions, got %v with args %v", conditions, args)
	}
}

func TestNumericSearchMatchesID(t *testing.T) {
	conditions, args := storyFilterConditions(StoryFilter{Search: "42"})
	if len(conditions) != 1 {
		t.Fatalf("expected one condition, got %v", conditions)
	}
	if conditions[0] != "id = $1" {
		t.Errorf("expected id match, got %q", conditions[0])
	}
	if args[0] != int64(42) {
		t.Errorf("expected arg 42, got %v", args[0])
	}
}

func TestTextSearchMatchesTitleSubstring(t *testing.T) {
	conditions, args := storyFilterConditions(StoryFilter{Search: "login"})
	if len(conditions) != 1 {
		t.Fatalf("expected one condition, got %v", conditions)
	}
	if conditions[0] != "title ILIKE '%' || $1 || '%'" {
		t.Errorf("expected title substring match, got %q", conditions[0])
	}
	if args[0] != "login" {
		t.Errorf("expected arg login, got %v", args[0])
	}
}

func TestMixedTokenIsTextSearch(t *testing.T) {
	conditions, _ := storyFilterConditions(StoryFilter{Search: "42b"})
	if conditions[0] != "title ILIKE '%' || $1 || '%'" {
		t.Errorf("mixed token should fall back to title search, got %q", conditions[0])
	}
}
