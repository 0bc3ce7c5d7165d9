package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/prepstack/pack-engine/internal/models"
)

// Field length limits
const (
	MaxNameLength        = 100
	MaxVersionLength     = 20
	MaxDescriptionLength = 2000
	MaxQuestionLength    = 2000
	MaxTipLength         = 500
	MaxAuthorLength      = 100
)

// Question time limits in seconds
const (
	MinTimeLimit = 30
	MaxTimeLimit = 1800
)

var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`)

var (
	validDifficulties = map[string]bool{"easy": true, "medium": true, "hard": true}
	validTypes        = map[string]bool{"behavioral": true, "technical": true, "situational": true}
)

// FieldError describes one structural violation at a JSON path
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// SchemaError aggregates every structural violation found in a document.
// Parse never stops at the first problem.
type SchemaError struct {
	Fields []FieldError
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	if len(e.Fields) == 0 {
		return "schema error"
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Path, f.Message))
	}
	return "schema error: " + strings.Join(msgs, "; ")
}

type collector struct {
	fields []FieldError
}

func (c *collector) add(path, format string, args ...interface{}) {
	c.fields = append(c.fields, FieldError{
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}

// Parse decodes a raw JSON document into ContentPackData and checks the
// structural contract. Pure function; on non-conformance it returns a
// *SchemaError listing every violated field path.
func Parse(raw []byte) (*models.ContentPackData, error) {
	var data models.ContentPackData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &SchemaError{Fields: []FieldError{{
			Path:    "$",
			Message: fmt.Sprintf("document is not valid JSON: %v", err),
		}}}
	}

	c := &collector{}
	checkIdentity(c, &data)
	checkCategories(c, data.Content.Categories)
	checkQuestions(c, data.Content.Questions, data.Content.Categories)
	checkCriteria(c, data.Content.EvaluationCriteria)
	checkMetadata(c, data.Metadata)

	if len(c.fields) > 0 {
		return nil, &SchemaError{Fields: c.fields}
	}

	return &data, nil
}

func checkIdentity(c *collector, data *models.ContentPackData) {
	if strings.TrimSpace(data.Name) == "" {
		c.add("name", "name is required")
	} else if len(data.Name) > MaxNameLength {
		c.add("name", "name exceeds %d characters", MaxNameLength)
	}

	if strings.TrimSpace(data.Version) == "" {
		c.add("version", "version is required")
	} else if len(data.Version) > MaxVersionLength {
		c.add("version", "version exceeds %d characters", MaxVersionLength)
	} else if !versionPattern.MatchString(data.Version) {
		c.add("version", "version %q is not a semantic version", data.Version)
	}

	if len(data.Description) > MaxDescriptionLength {
		c.add("description", "description exceeds %d characters", MaxDescriptionLength)
	}
}

func checkCategories(c *collector, categories []models.Category) {
	if len(categories) == 0 {
		c.add("content.categories", "at least one category is required")
		return
	}

	seen := make(map[string]bool, len(categories))
	for i, cat := range categories {
		path := fmt.Sprintf("content.categories[%d]", i)

		if strings.TrimSpace(cat.ID) == "" {
			c.add(path+".id", "category id is required")
		} else if seen[cat.ID] {
			c.add(path+".id", "duplicate category id %q", cat.ID)
		} else {
			seen[cat.ID] = true
		}

		if strings.TrimSpace(cat.Name) == "" {
			c.add(path+".name", "category name is required")
		} else if len(cat.Name) > MaxNameLength {
			c.add(path+".name", "category name exceeds %d characters", MaxNameLength)
		}

		if cat.Weight < 0 || cat.Weight > 1 {
			c.add(path+".weight", "weight %.3f is outside [0,1]", cat.Weight)
		}
	}
}

func checkQuestions(c *collector, questions []models.Question, categories []models.Category) {
	if len(questions) == 0 {
		c.add("content.questions", "at least one question is required")
		return
	}

	categoryIDs := make(map[string]bool, len(categories))
	for _, cat := range categories {
		categoryIDs[cat.ID] = true
	}

	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		path := fmt.Sprintf("content.questions[%d]", i)

		if strings.TrimSpace(q.ID) == "" {
			c.add(path+".id", "question id is required")
		} else if seen[q.ID] {
			c.add(path+".id", "duplicate question id %q", q.ID)
		} else {
			seen[q.ID] = true
		}

		if strings.TrimSpace(q.CategoryID) == "" {
			c.add(path+".category_id", "category_id is required")
		} else if !categoryIDs[q.CategoryID] {
			c.add(path+".category_id", "category %q does not exist", q.CategoryID)
		}

		if !validTypes[q.Type] {
			c.add(path+".type", "type %q must be one of behavioral, technical, situational", q.Type)
		}

		if !validDifficulties[q.Difficulty] {
			c.add(path+".difficulty", "difficulty %q must be one of easy, medium, hard", q.Difficulty)
		}

		if strings.TrimSpace(q.Text) == "" {
			c.add(path+".text", "question text is required")
		} else if len(q.Text) > MaxQuestionLength {
			c.add(path+".text", "question text exceeds %d characters", MaxQuestionLength)
		}

		if q.TimeLimit < MinTimeLimit || q.TimeLimit > MaxTimeLimit {
			c.add(path+".time_limit", "time limit %d is outside %d..%d seconds", q.TimeLimit, MinTimeLimit, MaxTimeLimit)
		}

		if len(q.Tips) == 0 {
			c.add(path+".tips", "at least one tip is required")
		}
		for j, tip := range q.Tips {
			if strings.TrimSpace(tip) == "" {
				c.add(fmt.Sprintf("%s.tips[%d]", path, j), "tip must not be empty")
			} else if len(tip) > MaxTipLength {
				c.add(fmt.Sprintf("%s.tips[%d]", path, j), "tip exceeds %d characters", MaxTipLength)
			}
		}
	}
}

func checkCriteria(c *collector, criteria models.EvaluationCriteria) {
	dims := []struct {
		name string
		crit models.Criterion
	}{
		{"clarity", criteria.Clarity},
		{"content", criteria.Content},
		{"delivery", criteria.Delivery},
		{"structure", criteria.Structure},
	}

	for _, d := range dims {
		path := "content.evaluation_criteria." + d.name

		if d.crit.Weight < 0 || d.crit.Weight > 1 {
			c.add(path+".weight", "weight %.3f is outside [0,1]", d.crit.Weight)
		}

		if len(d.crit.Factors) == 0 {
			c.add(path+".factors", "at least one factor is required")
		}
		for j, f := range d.crit.Factors {
			if strings.TrimSpace(f) == "" {
				c.add(fmt.Sprintf("%s.factors[%d]", path, j), "factor must not be empty")
			}
		}
	}
}

func checkMetadata(c *collector, meta models.PackMetadata) {
	if strings.TrimSpace(meta.Author) == "" {
		c.add("metadata.author", "author is required")
	} else if len(meta.Author) > MaxAuthorLength {
		c.add("metadata.author", "author exceeds %d characters", MaxAuthorLength)
	}

	if strings.TrimSpace(meta.Language) == "" {
		c.add("metadata.language", "language is required")
	}
}
