package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/prepstack/pack-engine/internal/config"
	"github.com/prepstack/pack-engine/internal/models"
	"github.com/prepstack/pack-engine/internal/schema"
)

// injectionPatterns match HTML/script injection attempts in free-text fields.
// Any match fails validation outright, never a warning.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script\b`),
	regexp.MustCompile(`(?i)<\s*/\s*script\s*>`),
	regexp.MustCompile(`(?i)<\s*iframe\b`),
	regexp.MustCompile(`(?i)\bon(click|load|error|mouseover|focus|blur)\s*=`),
	regexp.MustCompile(`(?i)javascript\s*:`),
}

// Validator layers security and scale heuristics on top of schema validation
// and measures the whole run against a wall-clock budget.
type Validator struct {
	target       time.Duration
	maxQuestions int
}

// New creates a validator with the given budget configuration
func New(cfg config.ValidationConfig) *Validator {
	maxQuestions := cfg.MaxQuestions
	if maxQuestions <= 0 {
		maxQuestions = 2000
	}
	target := cfg.Target
	if target <= 0 {
		target = time.Second
	}
	return &Validator{target: target, maxQuestions: maxQuestions}
}

// Validate runs schema parsing plus heuristic checks on a raw pack document.
// Rule violations are returned as data, never as an error. The result is
// built fresh on every call.
func (v *Validator) Validate(raw []byte) *models.ValidationResult {
	start := time.Now()

	result := &models.ValidationResult{
		Errors:   []models.ValidationIssue{},
		Warnings: []models.ValidationIssue{},
	}

	data, err := schema.Parse(raw)
	if err != nil {
		var schemaErr *schema.SchemaError
		if errors.As(err, &schemaErr) {
			for _, f := range schemaErr.Fields {
				result.Errors = append(result.Errors, models.ValidationIssue{
					Path:    f.Path,
					Message: f.Message,
					Code:    models.CodeSchemaError,
				})
			}
		} else {
			result.Errors = append(result.Errors, models.ValidationIssue{
				Path:    "$",
				Message: err.Error(),
				Code:    models.CodeSchemaError,
			})
		}
	}

	// Heuristics run even when the schema failed, as long as the document
	// decodes at all: a structurally broken pack can still carry an
	// injection payload worth reporting.
	if data == nil {
		var lenient models.ContentPackData
		if json.Unmarshal(raw, &lenient) == nil {
			data = &lenient
		}
	}

	if data != nil {
		v.scanSecurity(data, result)
		v.checkScale(data, result)
		v.checkWeightDrift(data, result)
	}

	duration := time.Since(start)

	// Hard ceiling at 5x the budget. The soft target itself never affects
	// validity.
	if duration > 5*v.target {
		result.Errors = append(result.Errors, models.ValidationIssue{
			Path:    "$",
			Message: fmt.Sprintf("validation took %s, exceeding the %s hard limit", duration, 5*v.target),
			Code:    models.CodeTimeout,
		})
	}

	result.Performance = models.ValidationTiming{
		DurationMs: duration.Milliseconds(),
		TargetMs:   v.target.Milliseconds(),
		TargetMet:  duration <= v.target,
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// scanSecurity checks every free-text field for injection patterns
func (v *Validator) scanSecurity(data *models.ContentPackData, result *models.ValidationResult) {
	check := func(path, text string) {
		for _, pattern := range injectionPatterns {
			if pattern.MatchString(text) {
				result.Errors = append(result.Errors, models.ValidationIssue{
					Path:    path,
					Message: "field contains a script injection pattern",
					Code:    models.CodeSecurityViolation,
				})
				return
			}
		}
	}

	check("name", data.Name)
	check("description", data.Description)
	check("metadata.author", data.Metadata.Author)

	for i, cat := range data.Content.Categories {
		check(fmt.Sprintf("content.categories[%d].name", i), cat.Name)
		check(fmt.Sprintf("content.categories[%d].description", i), cat.Description)
	}

	for i, q := range data.Content.Questions {
		check(fmt.Sprintf("content.questions[%d].text", i), q.Text)
		for j, tip := range q.Tips {
			check(fmt.Sprintf("content.questions[%d].tips[%d]", i, j), tip)
		}
	}

	dims := map[string][]string{
		"clarity":   data.Content.EvaluationCriteria.Clarity.Factors,
		"content":   data.Content.EvaluationCriteria.Content.Factors,
		"delivery":  data.Content.EvaluationCriteria.Delivery.Factors,
		"structure": data.Content.EvaluationCriteria.Structure.Factors,
	}
	for name, factors := range dims {
		for j, f := range factors {
			check(fmt.Sprintf("content.evaluation_criteria.%s.factors[%d]", name, j), f)
		}
	}
}

// checkScale warns when a pack grows past the configured question ceiling
func (v *Validator) checkScale(data *models.ContentPackData, result *models.ValidationResult) {
	count := len(data.Content.Questions)
	if count > v.maxQuestions {
		result.Warnings = append(result.Warnings, models.ValidationIssue{
			Path:       "content.questions",
			Message:    fmt.Sprintf("pack has %d questions, above the %d ceiling", count, v.maxQuestions),
			Code:       models.CodeExcessiveSize,
			Suggestion: "split the pack into smaller packs per category or difficulty",
		})
	}
}

// checkWeightDrift warns when category weights drift far from summing to 1
func (v *Validator) checkWeightDrift(data *models.ContentPackData, result *models.ValidationResult) {
	if len(data.Content.Categories) == 0 {
		return
	}

	var sum float64
	for _, cat := range data.Content.Categories {
		sum += cat.Weight
	}

	if sum < 0.5 || sum > 1.5 {
		result.Warnings = append(result.Warnings, models.ValidationIssue{
			Path:       "content.categories",
			Message:    fmt.Sprintf("category weights sum to %.2f, far from 1.0", sum),
			Code:       models.CodeWeightDrift,
			Suggestion: "rebalance category weights so they sum close to 1.0",
		})
	}
}
