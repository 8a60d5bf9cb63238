package export

import (
	"strings"
	"testing"
	"time"

	"reqtrack/api/internal/store"
)

func TestRenderStoryHTML(t *testing.T) {
	points := 5
	rec := store.Story{
		ID:                 42,
		Title:              "Implement login flow",
		Description:        "As a user I want to sign in with email and password.",
		Assignee:           "bob",
		Status:             "In Progress",
		Tags:               "auth,backend",
		AcceptanceCriteria: []string{"Valid credentials return a token", "Invalid credentials return 401"},
		StoryPoints:        &points,
		CreatedBy:          "alice",
		CreatedOn:          time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Activity: []store.ActivityEntry{
			{Timestamp: "2025-03-14 09:30:00", User: "alice", Action: "[2025-03-14 09:30:00] alice: Created story"},
		},
	}

	html, err := RenderStoryHTML(BuildTemplateData(rec, true))
	if err != nil {
		t.Fatalf("RenderStoryHTML() error = %v", err)
	}

	for _, want := range []string{
		"#42 Implement login flow",
		"Created by alice on Mar 14, 2025",
		"In Progress",
		">auth</span>",
		">backend</span>",
		"Valid credentials return a token",
		"[2025-03-14 09:30:00] alice: Created story",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
}

func TestRenderStoryHTMLNoPointsShowsNone(t *testing.T) {
	rec := store.Story{ID: 1, Title: "Backlog item", CreatedOn: time.Now()}
	html, err := RenderStoryHTML(BuildTemplateData(rec, false))
	if err != nil {
		t.Fatalf("RenderStoryHTML() error = %v", err)
	}
	if !strings.Contains(html, "None") {
		t.Error("expected unestimated story to render story points as None")
	}
	if strings.Contains(html, "Activity") {
		t.Error("activity section rendered without IncludeActivity")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Implement login flow", "Implement-login-flow"},
		{"weird/chars: here!", "weirdchars-here"},
		{"", "story"},
		{strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	got := percentEncodeForDataURL("a b+c")
	if got != "a%20b%2Bc" {
		t.Errorf("percentEncodeForDataURL = %q", got)
	}
}
