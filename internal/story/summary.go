package story

import (
	"bytes"
	"encoding/json"

	"reqtrack/api/internal/store"
)

// StatusCounts maps status strings to story counts, preserving first-seen
// order when marshaled to JSON (Go maps would sort the keys).
type StatusCounts struct {
	order  []string
	counts map[string]int
}

func (c *StatusCounts) Add(status string) {
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	if _, seen := c.counts[status]; !seen {
		c.order = append(c.order, status)
	}
	c.counts[status]++
}

func (c *StatusCounts) Get(status string) int {
	return c.counts[status]
}

func (c *StatusCounts) Len() int {
	return len(c.order)
}

func (c *StatusCounts) Statuses() []string {
	return append([]string(nil), c.order...)
}

func (c StatusCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, status := range c.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(status)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		count, err := json.Marshal(c.counts[status])
		if err != nil {
			return nil, err
		}
		buf.Write(count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Summary is the workspace view for one user: their assigned stories grouped
// by status.
type Summary struct {
	Username     string
	TotalStories int
	ByStatus     StatusCounts
	Stories      []store.Story
}

// Summarize selects the stories assigned to username and accumulates status
// counts in the order statuses are first seen.
func Summarize(username string, stories []store.Story) Summary {
	summary := Summary{Username: username, Stories: make([]store.Story, 0)}
	for _, s := range stories {
		if s.Assignee != username {
			continue
		}
		summary.Stories = append(summary.Stories, s)
		summary.ByStatus.Add(s.Status)
		summary.TotalStories++
	}
	return summary
}
