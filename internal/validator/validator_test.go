package validator

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepstack/pack-engine/internal/config"
	"github.com/prepstack/pack-engine/internal/models"
)

func testValidator() *Validator {
	return New(config.ValidationConfig{
		Target:       time.Second,
		MaxQuestions: 2000,
	})
}

func packDocument(t *testing.T, mutate func(*models.ContentPackData)) []byte {
	t.Helper()

	data := models.ContentPackData{
		Name:    "Frontend Interview Pack",
		Version: "0.3.1",
		Content: models.PackContent{
			Categories: []models.Category{
				{ID: "javascript", Name: "JavaScript", Weight: 0.5},
				{ID: "css", Name: "CSS", Weight: 0.5},
			},
			Questions: []models.Question{
				{
					ID:         "q1",
					CategoryID: "javascript",
					Type:       "technical",
					Difficulty: "easy",
					Text:       "What does the event loop do?",
					TimeLimit:  180,
					Tips:       []string{"Mention the task queue"},
				},
			},
			EvaluationCriteria: models.EvaluationCriteria{
				Clarity:   models.Criterion{Weight: 0.25, Factors: []string{"clear wording"}},
				Content:   models.Criterion{Weight: 0.25, Factors: []string{"accuracy"}},
				Delivery:  models.Criterion{Weight: 0.25, Factors: []string{"confidence"}},
				Structure: models.Criterion{Weight: 0.25, Factors: []string{"ordering"}},
			},
		},
		Metadata: models.PackMetadata{Author: "content-team", Language: "en"},
	}

	if mutate != nil {
		mutate(&data)
	}

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return raw
}

func issueCodes(issues []models.ValidationIssue) []string {
	codes := make([]string, 0, len(issues))
	for _, issue := range issues {
		codes = append(codes, issue.Code)
	}
	return codes
}

func TestValidateCleanPack(t *testing.T) {
	result := testValidator().Validate(packDocument(t, nil))

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, int64(1000), result.Performance.TargetMs)
	assert.True(t, result.Performance.TargetMet)
	assert.Equal(t, models.StatusValid, result.Status())
}

func TestValidateScriptInjectionIsFatal(t *testing.T) {
	payloads := []string{
		`<script>alert(1)</script>`,
		`<SCRIPT src="x.js">`,
		`<iframe src="evil.html">`,
		`click here onload=steal()`,
		`javascript:alert(1)`,
	}

	for _, payload := range payloads {
		t.Run(payload, func(t *testing.T) {
			raw := packDocument(t, func(d *models.ContentPackData) {
				d.Content.Questions[0].Text = "Describe this snippet: " + payload
			})

			result := testValidator().Validate(raw)

			assert.False(t, result.IsValid)
			assert.Contains(t, issueCodes(result.Errors), models.CodeSecurityViolation)
			assert.Equal(t, models.StatusInvalid, result.Status())
		})
	}
}

func TestValidateInjectionPathPointsAtField(t *testing.T) {
	raw := packDocument(t, func(d *models.ContentPackData) {
		d.Content.Questions[0].Tips = []string{"safe tip", `<script>bad()</script>`}
	})

	result := testValidator().Validate(raw)

	require.False(t, result.IsValid)
	var found bool
	for _, issue := range result.Errors {
		if issue.Code == models.CodeSecurityViolation {
			assert.Equal(t, "content.questions[0].tips[1]", issue.Path)
			found = true
		}
	}
	assert.True(t, found, "expected a security violation for the tainted tip")
}

func TestValidateSecurityScanRunsDespiteSchemaErrors(t *testing.T) {
	raw := packDocument(t, func(d *models.ContentPackData) {
		d.Version = ""
		d.Content.Questions[0].Text = `<script>exfiltrate()</script>`
	})

	result := testValidator().Validate(raw)

	assert.False(t, result.IsValid)
	codes := issueCodes(result.Errors)
	assert.Contains(t, codes, models.CodeSchemaError)
	assert.Contains(t, codes, models.CodeSecurityViolation)
}

func TestValidateExcessiveSizeIsWarningOnly(t *testing.T) {
	v := New(config.ValidationConfig{Target: time.Second, MaxQuestions: 50})

	raw := packDocument(t, func(d *models.ContentPackData) {
		questions := make([]models.Question, 51)
		for i := range questions {
			questions[i] = models.Question{
				ID:         fmt.Sprintf("q%d", i),
				CategoryID: "javascript",
				Type:       "technical",
				Difficulty: "medium",
				Text:       fmt.Sprintf("Question number %d", i),
				TimeLimit:  120,
				Tips:       []string{"take your time"},
			}
		}
		d.Content.Questions = questions
	})

	result := v.Validate(raw)

	assert.True(t, result.IsValid, "size is advisory, not fatal")
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, models.CodeExcessiveSize, result.Warnings[0].Code)
	assert.Equal(t, "content.questions", result.Warnings[0].Path)
	assert.NotEmpty(t, result.Warnings[0].Suggestion)
}

func TestValidateWeightDriftWarning(t *testing.T) {
	tests := []struct {
		name     string
		weights  []float64
		expected bool
	}{
		{"balanced", []float64{0.5, 0.5}, false},
		{"slightly off", []float64{0.7, 0.5}, false},
		{"far above", []float64{1.0, 0.9}, true},
		{"far below", []float64{0.1, 0.2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := packDocument(t, func(d *models.ContentPackData) {
				d.Content.Categories[0].Weight = tt.weights[0]
				d.Content.Categories[1].Weight = tt.weights[1]
			})

			result := testValidator().Validate(raw)

			assert.True(t, result.IsValid)
			if tt.expected {
				assert.Contains(t, issueCodes(result.Warnings), models.CodeWeightDrift)
			} else {
				assert.NotContains(t, issueCodes(result.Warnings), models.CodeWeightDrift)
			}
		})
	}
}

func TestValidateMalformedJSON(t *testing.T) {
	result := testValidator().Validate([]byte(`{"name": `))

	assert.False(t, result.IsValid)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, models.CodeSchemaError, result.Errors[0].Code)
	assert.Equal(t, "$", result.Errors[0].Path)
}

func TestValidateTimingFields(t *testing.T) {
	result := testValidator().Validate(packDocument(t, nil))

	assert.GreaterOrEqual(t, result.Performance.DurationMs, int64(0))
	assert.Less(t, result.Performance.DurationMs, int64(1000))
	assert.NotContains(t, issueCodes(result.Errors), models.CodeTimeout)
}

func TestErrorMessages(t *testing.T) {
	raw := packDocument(t, func(d *models.ContentPackData) {
		d.Name = ""
		d.Metadata.Author = ""
	})

	result := testValidator().Validate(raw)

	msgs := result.ErrorMessages()
	assert.Len(t, msgs, len(result.Errors))
	for _, msg := range msgs {
		assert.NotEmpty(t, msg)
	}
}
