package story

import (
	"fmt"

	"reqtrack/api/internal/store"
)

// ActivityItem is one element of the caller-supplied activity sequence on an
// update request. Items echoing previously recorded audit entries carry the
// rendered Action; new manual comments carry free-form Text and, from current
// clients, a client-generated ID used for duplicate-safe merging.
type ActivityItem struct {
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	User      string `json:"user,omitempty"`
	Action    string `json:"action,omitempty"`
	Text      string `json:"text,omitempty"`
}

// MergeComments reconciles caller-supplied manual comments into the activity
// log. A supplied item counts as a manual comment only when it carries Text;
// echoes of structured field-change entries are ignored.
//
// When any supplied item carries a client-generated ID, merging is done by
// identifier-set difference: an item is appended unless its ID was already
// recorded. Older clients send no IDs; for those the legacy heuristic is
// kept: merge only when the supplied sequence is strictly longer than the
// stored log, skipping items already present by value equality.
//
// Existing entries are never removed, reordered, or altered.
func MergeComments(record store.Story, supplied []ActivityItem, actor string, now Clock) store.Story {
	next := record
	next.Activity = append([]store.ActivityEntry(nil), record.Activity...)

	if hasClientIDs(supplied) {
		recorded := make(map[string]struct{}, len(next.Activity))
		for _, entry := range next.Activity {
			if entry.CommentID != "" {
				recorded[entry.CommentID] = struct{}{}
			}
		}
		for _, item := range supplied {
			if item.Text == "" || item.ID == "" {
				continue
			}
			if _, ok := recorded[item.ID]; ok {
				continue
			}
			entry := newEntry(now, actor, item.Text)
			entry.CommentID = item.ID
			next.Activity = append(next.Activity, entry)
			recorded[item.ID] = struct{}{}
		}
		return next
	}

	if len(supplied) <= len(record.Activity) {
		return next
	}
	for _, item := range supplied {
		if item.Text == "" {
			continue
		}
		if containsEntry(next.Activity, item) {
			continue
		}
		next.Activity = append(next.Activity, newEntry(now, actor, item.Text))
	}
	return next
}

func hasClientIDs(supplied []ActivityItem) bool {
	for _, item := range supplied {
		if item.ID != "" {
			return true
		}
	}
	return false
}

// containsEntry checks presence by value equality against the stored log. A
// Text-only item also matches an entry whose action line was rendered from the
// same comment text, so re-sent sequences do not duplicate comments.
func containsEntry(activity []store.ActivityEntry, item ActivityItem) bool {
	for _, entry := range activity {
		if item.Action != "" && entry.Action == item.Action && entry.User == item.User && entry.Timestamp == item.Timestamp {
			return true
		}
		if item.Text != "" && entry.Action == fmt.Sprintf("[%s] %s: %s", entry.Timestamp, entry.User, item.Text) {
			return true
		}
	}
	return false
}
