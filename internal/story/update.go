package story

import (
	"fmt"

	"reqtrack/api/internal/store"
)

// Update carries fully-populated replacement values for every mutable story
// field, plus the caller-supplied activity sequence used by MergeComments.
type Update struct {
	Title              string
	Description        string
	Assignee           string
	Status             string
	Tags               []string
	StoryPoints        *int
	AcceptanceCriteria []string
	Activity           []ActivityItem
}

// ApplyUpdate diffs the update against the persisted record and returns the
// mutated record. For each changed field exactly one audit entry is appended,
// in a fixed check order: title, description, assignee, status, tags,
// story points, acceptance criteria. Unchanged fields are left untouched, so
// replaying the same update is a no-op for both the fields and the log. The
// returned activity log is always a prefix-preserving extension of the input.
func ApplyUpdate(old store.Story, upd Update, actor string, now Clock) store.Story {
	next := old
	next.Activity = append([]store.ActivityEntry(nil), old.Activity...)

	if upd.Title != old.Title {
		next.Activity = append(next.Activity, newEntry(now, actor,
			fmt.Sprintf("Changed title from '%s' to '%s'", old.Title, upd.Title)))
		next.Title = upd.Title
	}

	if upd.Description != old.Description {
		next.Activity = append(next.Activity, newEntry(now, actor, "Updated description"))
		next.Description = upd.Description
	}

	if upd.Assignee != old.Assignee {
		next.Activity = append(next.Activity, newEntry(now, actor,
			fmt.Sprintf("Changed assignee from '%s' to '%s'", old.Assignee, upd.Assignee)))
		next.Assignee = upd.Assignee
	}

	if upd.Status != old.Status {
		next.Activity = append(next.Activity, newEntry(now, actor,
			fmt.Sprintf("Changed status from '%s' to '%s'", old.Status, upd.Status)))
		next.Status = upd.Status
	}

	oldTags := SplitTags(old.Tags)
	newTags := SplitTags(JoinTags(upd.Tags))
	if !tagsEqual(oldTags, newTags) {
		next.Activity = append(next.Activity, newEntry(now, actor, "Updated tags"))
		next.Tags = JoinTags(upd.Tags)
	}

	if !pointsEqual(old.StoryPoints, upd.StoryPoints) {
		next.Activity = append(next.Activity, newEntry(now, actor,
			fmt.Sprintf("Changed story points from %s to %s", pointsLabel(old.StoryPoints), pointsLabel(upd.StoryPoints))))
		next.StoryPoints = upd.StoryPoints
	}

	if !criteriaEqual(old.AcceptanceCriteria, upd.AcceptanceCriteria) {
		next.Activity = append(next.Activity, newEntry(now, actor, "Updated acceptance criteria"))
		next.AcceptanceCriteria = upd.AcceptanceCriteria
	}

	return next
}

func criteriaEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
