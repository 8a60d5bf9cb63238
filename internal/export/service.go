package export

import (
	"context"
	"fmt"

	"reqtrack/api/internal/store"
	"reqtrack/api/internal/story"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetStory(ctx context.Context, id int64) (store.Story, error)
}

// Service provides story export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	rec, err := s.store.GetStory(ctx, req.StoryID)
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}

	data := BuildTemplateData(rec, req.IncludeActivity)

	html, err := RenderStoryHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, fmt.Sprintf("story-%d-%s", rec.ID, rec.Title))
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

// BuildTemplateData maps a story record onto the template model.
func BuildTemplateData(rec store.Story, includeActivity bool) TemplateData {
	points := "None"
	if rec.StoryPoints != nil {
		points = fmt.Sprintf("%d", *rec.StoryPoints)
	}

	data := TemplateData{
		ID:                 rec.ID,
		Title:              rec.Title,
		Description:        rec.Description,
		Assignee:           rec.Assignee,
		Status:             rec.Status,
		Tags:               story.SplitTags(rec.Tags),
		StoryPoints:        points,
		AcceptanceCriteria: rec.AcceptanceCriteria,
		CreatedBy:          rec.CreatedBy,
		CreatedOn:          rec.CreatedOn,
	}

	if includeActivity {
		for _, entry := range rec.Activity {
			data.Activity = append(data.Activity, TemplateActivity{
				Timestamp: entry.Timestamp,
				User:      entry.User,
				Action:    entry.Action,
			})
		}
	}
	return data
}
