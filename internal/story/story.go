// Package story holds the story domain logic: tag normalization, the
// diff-and-audit update engine, manual comment merging, and the workspace
// status aggregation. Everything here is a pure function of its inputs; all
// I/O belongs to the store and transport layers.
package story

import (
	"fmt"
	"strings"
	"time"

	"reqtrack/api/internal/store"
)

const (
	DefaultAssignee = "Unassigned"
	DefaultStatus   = "In Progress"

	// TimestampLayout is the wall-clock format embedded in audit entries.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Clock supplies the current time. Production code passes time.Now.
type Clock func() time.Time

// SplitTags turns the persisted comma-joined form into the caller-facing
// ordered list: split on commas, whitespace trimmed, empties dropped.
func SplitTags(joined string) []string {
	parts := strings.Split(joined, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

// JoinTags builds the normalized persisted form from a caller-supplied list.
func JoinTags(tags []string) string {
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return strings.Join(normalized, ",")
}

func tagsEqual(a, b []string) bool {
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

// newEntry renders one audit entry. Action embeds the timestamp and actor so
// the log reads as a self-contained line per change.
func newEntry(now Clock, actor, description string) store.ActivityEntry {
	ts := now().Format(TimestampLayout)
	return store.ActivityEntry{
		Timestamp: ts,
		User:      actor,
		Action:    fmt.Sprintf("[%s] %s: %s", ts, actor, description),
	}
}

func pointsLabel(points *int) string {
	if points == nil {
		return "None"
	}
	return fmt.Sprintf("%d", *points)
}

func pointsEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
