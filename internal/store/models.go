package store

import "time"

// Story is a trackable unit of work. The Activity slice is append-only:
// entries are never removed or reordered once persisted.
type Story struct {
	ID                 int64
	Title              string
	Description        string
	Assignee           string
	Status             string
	Tags               string // comma-joined; exposed to callers as a list
	AcceptanceCriteria []string
	StoryPoints        *int
	CreatedBy          string
	CreatedOn          time.Time
	Activity           []ActivityEntry
}

// ActivityEntry is one audit record on a story.
// Action carries the full rendered line: "[<timestamp>] <user>: <description>".
// CommentID is set only for manual comments merged with a client-generated id.
type ActivityEntry struct {
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	Action    string `json:"action"`
	CommentID string `json:"comment_id,omitempty"`
}

type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedOn    time.Time
}

// Attachment describes a file stored in the blob backend for a story.
type Attachment struct {
	ID          int64
	StoryID     int64
	Filename    string
	ContentType string
	SizeBytes   int64
	ObjectKey   string
	UploadedBy  string
	UploadedOn  time.Time
}

// StoryFilter holds the optional list predicates. Zero values mean "not set";
// all set predicates are conjoined. Search is the parallel free-text/id mode:
// an all-numeric token matches the story id exactly, anything else is a
// case-insensitive substring match on the title.
type StoryFilter struct {
	Assignee  string
	Status    string
	Tag       string
	CreatedBy string
	StartDate *time.Time
	EndDate   *time.Time
	Search    string
}
