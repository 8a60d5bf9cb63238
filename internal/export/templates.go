package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var storyTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}
	storyTemplate = template.Must(template.New("story").Funcs(funcMap).Parse(storyTemplateHTML))
}

// TemplateData holds data for story template rendering
type TemplateData struct {
	ID                 int64
	Title              string
	Description        string
	Assignee           string
	Status             string
	Tags               []string
	StoryPoints        string
	AcceptanceCriteria []string
	CreatedBy          string
	CreatedOn          time.Time
	Activity           []TemplateActivity
}

// TemplateActivity holds one activity log line for the template
type TemplateActivity struct {
	Timestamp string
	User      string
	Action    string
}

// RenderStoryHTML renders the story template with provided data
func RenderStoryHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := storyTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const storyTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>#{{.ID}} {{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .field { margin: 0.5rem 0; }
    .field strong { display: inline-block; min-width: 8rem; }
    .tag { display: inline-block; background: #eef; border-radius: 3px; padding: 0.1rem 0.5rem; margin-right: 0.3rem; font-size: 0.85em; }
    .criteria li { margin: 0.25rem 0; }
    .activity { background: #f5f5f5; padding: 0.5rem 1rem; margin: 0.5rem 0; border-left: 3px solid #333; font-size: 0.9em; }
  </style>
</head>
<body>
  <h1>#{{.ID}} {{.Title}}</h1>
  <div class="meta">Created by {{.CreatedBy}} on {{formatDate .CreatedOn "Jan 2, 2006"}}</div>

  <div class="field"><strong>Status</strong> {{.Status}}</div>
  <div class="field"><strong>Assignee</strong> {{.Assignee}}</div>
  <div class="field"><strong>Story points</strong> {{.StoryPoints}}</div>
  {{if .Tags}}<div class="field"><strong>Tags</strong> {{range .Tags}}<span class="tag">{{.}}</span>{{end}}</div>{{end}}

  <h2>Description</h2>
  <p>{{.Description}}</p>

  {{if .AcceptanceCriteria}}
  <h2>Acceptance Criteria</h2>
  <ul class="criteria">
    {{range .AcceptanceCriteria}}<li>{{.}}</li>{{end}}
  </ul>
  {{end}}

  {{if .Activity}}
  <h2>Activity</h2>
  {{range .Activity}}<div class="activity">{{.Action}}</div>{{end}}
  {{end}}
</body>
</html>`
