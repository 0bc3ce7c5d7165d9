package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/prepstack/pack-engine/internal/models"
)

func validData() models.ContentPackData {
	return models.ContentPackData{
		Name:        "Backend Interview Pack",
		Version:     "1.2.0",
		Description: "Questions for backend engineering interviews",
		Content: models.PackContent{
			Categories: []models.Category{
				{ID: "algorithms", Name: "Algorithms", Weight: 0.6},
				{ID: "system-design", Name: "System Design", Weight: 0.4},
			},
			Questions: []models.Question{
				{
					ID:         "q1",
					CategoryID: "algorithms",
					Type:       "technical",
					Difficulty: "medium",
					Text:       "Explain the tradeoffs between a hash map and a balanced tree.",
					TimeLimit:  300,
					Tips:       []string{"Compare lookup and ordering guarantees"},
				},
				{
					ID:         "q2",
					CategoryID: "system-design",
					Type:       "situational",
					Difficulty: "hard",
					Text:       "Design a rate limiter for a public API.",
					TimeLimit:  900,
					Tips:       []string{"Start with the token bucket"},
				},
			},
			EvaluationCriteria: models.EvaluationCriteria{
				Clarity:   models.Criterion{Weight: 0.25, Factors: []string{"precise terminology"}},
				Content:   models.Criterion{Weight: 0.25, Factors: []string{"technical depth"}},
				Delivery:  models.Criterion{Weight: 0.25, Factors: []string{"pacing"}},
				Structure: models.Criterion{Weight: 0.25, Factors: []string{"logical flow"}},
			},
		},
		Metadata: models.PackMetadata{
			Author:   "content-team",
			Language: "en",
		},
	}
}

func marshal(t *testing.T, data models.ContentPackData) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal test document: %v", err)
	}
	return raw
}

func errorPaths(err error) []string {
	schemaErr, ok := err.(*SchemaError)
	if !ok {
		return nil
	}
	paths := make([]string, 0, len(schemaErr.Fields))
	for _, f := range schemaErr.Fields {
		paths = append(paths, f.Path)
	}
	return paths
}

func assertHasPath(t *testing.T, err error, path string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected schema error with path %q, got nil", path)
	}
	for _, p := range errorPaths(err) {
		if p == path {
			return
		}
	}
	t.Errorf("expected error path %q, got %v", path, errorPaths(err))
}

func TestParseValidDocument(t *testing.T) {
	data, err := Parse(marshal(t, validData()))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if data.Name != "Backend Interview Pack" {
		t.Errorf("unexpected name: %s", data.Name)
	}
	if len(data.Content.Questions) != 2 {
		t.Errorf("expected 2 questions, got %d", len(data.Content.Questions))
	}
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte("{not json"))
	assertHasPath(t, err, "$")
}

func TestParseFieldViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.ContentPackData)
		path   string
	}{
		{
			name:   "missing name",
			mutate: func(d *models.ContentPackData) { d.Name = "" },
			path:   "name",
		},
		{
			name:   "missing version",
			mutate: func(d *models.ContentPackData) { d.Version = "" },
			path:   "version",
		},
		{
			name:   "non-semver version",
			mutate: func(d *models.ContentPackData) { d.Version = "v1" },
			path:   "version",
		},
		{
			name:   "oversized description",
			mutate: func(d *models.ContentPackData) { d.Description = strings.Repeat("x", MaxDescriptionLength+1) },
			path:   "description",
		},
		{
			name:   "no categories",
			mutate: func(d *models.ContentPackData) { d.Content.Categories = nil },
			path:   "content.categories",
		},
		{
			name: "duplicate category id",
			mutate: func(d *models.ContentPackData) {
				d.Content.Categories[1].ID = d.Content.Categories[0].ID
			},
			path: "content.categories[1].id",
		},
		{
			name: "category weight out of range",
			mutate: func(d *models.ContentPackData) {
				d.Content.Categories[0].Weight = 1.5
			},
			path: "content.categories[0].weight",
		},
		{
			name:   "no questions",
			mutate: func(d *models.ContentPackData) { d.Content.Questions = nil },
			path:   "content.questions",
		},
		{
			name: "duplicate question id",
			mutate: func(d *models.ContentPackData) {
				d.Content.Questions[1].ID = d.Content.Questions[0].ID
			},
			path: "content.questions[1].id",
		},
		{
			name: "unknown category reference",
			mutate: func(d *models.ContentPackData) {
				d.Content.Questions[0].CategoryID = "nonexistent"
			},
			path: "content.questions[0].category_id",
		},
		{
			name: "invalid question type",
			mutate: func(d *models.ContentPackData) {
				d.Content.Questions[0].Type = "trivia"
			},
			path: "content.questions[0].type",
		},
		{
			name: "invalid difficulty",
			mutate: func(d *models.ContentPackData) {
				d.Content.Questions[1].Difficulty = "extreme"
			},
			path: "content.questions[1].difficulty",
		},
		{
			name: "missing question text",
			mutate: func(d *models.ContentPackData) {
				d.Content.Questions[0].Text = "  "
			},
			path: "content.questions[0].text",
		},
		{
			name: "time limit below minimum",
			mutate: func(d *models.ContentPackData) {
				d.Content.Questions[0].TimeLimit = 10
			},
			path: "content.questions[0].time_limit",
		},
		{
			name: "time limit above maximum",
			mutate: func(d *models.ContentPackData) {
				d.Content.Questions[0].TimeLimit = 3600
			},
			path: "content.questions[0].time_limit",
		},
		{
			name: "no tips",
			mutate: func(d *models.ContentPackData) {
				d.Content.Questions[0].Tips = nil
			},
			path: "content.questions[0].tips",
		},
		{
			name: "empty tip",
			mutate: func(d *models.ContentPackData) {
				d.Content.Questions[0].Tips = []string{""}
			},
			path: "content.questions[0].tips[0]",
		},
		{
			name: "criterion weight out of range",
			mutate: func(d *models.ContentPackData) {
				d.Content.EvaluationCriteria.Clarity.Weight = -0.1
			},
			path: "content.evaluation_criteria.clarity.weight",
		},
		{
			name: "criterion without factors",
			mutate: func(d *models.ContentPackData) {
				d.Content.EvaluationCriteria.Delivery.Factors = nil
			},
			path: "content.evaluation_criteria.delivery.factors",
		},
		{
			name:   "missing author",
			mutate: func(d *models.ContentPackData) { d.Metadata.Author = "" },
			path:   "metadata.author",
		},
		{
			name:   "missing language",
			mutate: func(d *models.ContentPackData) { d.Metadata.Language = "" },
			path:   "metadata.language",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := validData()
			tt.mutate(&data)

			parsed, err := Parse(marshal(t, data))
			if parsed != nil {
				t.Error("expected nil data on schema violation")
			}
			assertHasPath(t, err, tt.path)
		})
	}
}

func TestParseCollectsAllViolations(t *testing.T) {
	data := validData()
	data.Name = ""
	data.Version = "not-a-version"
	data.Content.Questions[0].TimeLimit = 5
	data.Metadata.Author = ""

	_, err := Parse(marshal(t, data))
	if err == nil {
		t.Fatal("expected schema error")
	}

	paths := errorPaths(err)
	if len(paths) < 4 {
		t.Errorf("expected at least 4 violations, got %d: %v", len(paths), paths)
	}
	for _, want := range []string{"name", "version", "content.questions[0].time_limit", "metadata.author"} {
		assertHasPath(t, err, want)
	}
}

func TestParsePrereleaseVersion(t *testing.T) {
	data := validData()
	data.Version = "2.0.0-rc.1"

	if _, err := Parse(marshal(t, data)); err != nil {
		t.Fatalf("prerelease version should be accepted: %v", err)
	}
}
