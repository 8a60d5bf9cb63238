package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	Assignee string `json:"assignee"`
	Status   string `json:"status"`
}

// Query describes a search request.
type Query struct {
	Text           string
	FilterAssignee string
	FilterStatus   string
	Limit          int
	Offset         int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over stories.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push stories into a search index.
type Indexer interface {
	IndexStory(rec StoryRecord) error
	DeleteStory(id int64) error
}

// StoryRecord is the data we index for a story.
type StoryRecord struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
	Status      string `json:"status"`
	Tags        string `json:"tags"`
}
