package story

import (
	"strings"
	"testing"
)

func TestMergeCommentsAppendsManualComment(t *testing.T) {
	record := baseStory()
	supplied := []ActivityItem{
		{Timestamp: record.Activity[0].Timestamp, User: record.Activity[0].User, Action: record.Activity[0].Action},
		{Text: "Looks good, ship it"},
	}

	next := MergeComments(record, supplied, "carol", fixedClock())

	if got, want := len(next.Activity), len(record.Activity)+1; got != want {
		t.Fatalf("expected %d entries, got %d", want, got)
	}
	entry := next.Activity[len(next.Activity)-1]
	if !strings.HasSuffix(entry.Action, "carol: Looks good, ship it") {
		t.Fatalf("unexpected merged comment: %q", entry.Action)
	}
}

func TestMergeCommentsIgnoresShorterOrEqualSequences(t *testing.T) {
	record := baseStory()
	supplied := []ActivityItem{{Text: "hidden comment"}}

	// One supplied item vs one stored entry: not strictly longer, no merge.
	next := MergeComments(record, supplied, "carol", fixedClock())

	if len(next.Activity) != len(record.Activity) {
		t.Fatalf("merge ran on a non-growing sequence")
	}
}

func TestMergeCommentsDoesNotDuplicateOnRepeat(t *testing.T) {
	record := baseStory()
	supplied := []ActivityItem{
		{Timestamp: record.Activity[0].Timestamp, User: record.Activity[0].User, Action: record.Activity[0].Action},
		{Text: "Please re-test on staging"},
	}

	once := MergeComments(record, supplied, "carol", fixedClock())
	twice := MergeComments(once, supplied, "carol", fixedClock())

	count := 0
	for _, entry := range twice.Activity {
		if strings.Contains(entry.Action, "Please re-test on staging") {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected comment once, found %d times", count)
	}
}

func TestMergeCommentsByClientID(t *testing.T) {
	record := baseStory()
	supplied := []ActivityItem{
		{ID: "c-1", Text: "First comment"},
		{ID: "c-2", Text: "Second comment"},
	}

	once := MergeComments(record, supplied, "carol", fixedClock())
	if got, want := len(once.Activity), len(record.Activity)+2; got != want {
		t.Fatalf("expected %d entries, got %d", want, got)
	}

	// Identifier-set difference: re-sending the same ids adds nothing, a new
	// id is appended even though the sequence is not longer than the log.
	supplied = append(supplied, ActivityItem{ID: "c-3", Text: "Third comment"})
	twice := MergeComments(once, supplied, "carol", fixedClock())
	if got, want := len(twice.Activity), len(once.Activity)+1; got != want {
		t.Fatalf("expected %d entries, got %d", want, got)
	}
	last := twice.Activity[len(twice.Activity)-1]
	if last.CommentID != "c-3" {
		t.Fatalf("expected comment id c-3, got %q", last.CommentID)
	}
}

func TestMergeCommentsNeverTouchesExistingEntries(t *testing.T) {
	record := baseStory()
	supplied := []ActivityItem{
		{Action: record.Activity[0].Action, Timestamp: record.Activity[0].Timestamp, User: record.Activity[0].User},
		{Text: "A"},
		{Text: "B"},
	}

	next := MergeComments(record, supplied, "carol", fixedClock())

	for i, entry := range record.Activity {
		if next.Activity[i] != entry {
			t.Fatalf("entry %d altered", i)
		}
	}
	if len(next.Activity) != len(record.Activity)+2 {
		t.Fatalf("expected both comments appended, got %d entries", len(next.Activity))
	}
}
