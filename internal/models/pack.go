package models

import (
	"encoding/json"
	"time"
)

// PackStatus represents the current lifecycle state of a content pack
type PackStatus string

const (
	StatusDraft      PackStatus = "draft"
	StatusValidating PackStatus = "validating"
	StatusValid      PackStatus = "valid"
	StatusInvalid    PackStatus = "invalid"
	StatusActive     PackStatus = "active"
)

// IsActivatable returns true if a pack in this status may be promoted to active
func (s PackStatus) IsActivatable() bool {
	return s == StatusValid
}

// IsValidated returns true if the status is a validation outcome
func (s PackStatus) IsValidated() bool {
	return s == StatusValid || s == StatusInvalid || s == StatusActive
}

// ContentPack is the persisted record for a named, versioned bundle of
// interview content. Content holds the raw uploaded JSON document; the parsed
// form is ContentPackData.
type ContentPack struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Version   string          `json:"version"`
	Content   json.RawMessage `json:"content,omitempty"`
	Status    PackStatus      `json:"status"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ContentPackData is the structural payload of a content pack document
type ContentPackData struct {
	Name        string       `json:"name" yaml:"name"`
	Version     string       `json:"version" yaml:"version"`
	Description string       `json:"description" yaml:"description"`
	Content     PackContent  `json:"content" yaml:"content"`
	Metadata    PackMetadata `json:"metadata" yaml:"metadata"`
}

// PackContent holds the interview material itself
type PackContent struct {
	Categories         []Category         `json:"categories" yaml:"categories"`
	Questions          []Question         `json:"questions" yaml:"questions"`
	EvaluationCriteria EvaluationCriteria `json:"evaluation_criteria" yaml:"evaluation_criteria"`
}

// Category groups questions and carries a grading weight
type Category struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Weight      float64 `json:"weight" yaml:"weight"`
}

// Question is a single practice question bound to a category
type Question struct {
	ID         string   `json:"id" yaml:"id"`
	CategoryID string   `json:"category_id" yaml:"category_id"`
	Type       string   `json:"type" yaml:"type"`             // behavioral | technical | situational
	Difficulty string   `json:"difficulty" yaml:"difficulty"` // easy | medium | hard
	Text       string   `json:"text" yaml:"text"`
	TimeLimit  int      `json:"time_limit" yaml:"time_limit"` // seconds, 30..1800
	Tips       []string `json:"tips" yaml:"tips"`
}

// EvaluationCriteria holds the four fixed grading dimensions
type EvaluationCriteria struct {
	Clarity   Criterion `json:"clarity" yaml:"clarity"`
	Content   Criterion `json:"content" yaml:"content"`
	Delivery  Criterion `json:"delivery" yaml:"delivery"`
	Structure Criterion `json:"structure" yaml:"structure"`
}

// Criterion is one grading dimension with a weight and scoring factors
type Criterion struct {
	Weight  float64  `json:"weight" yaml:"weight"`
	Factors []string `json:"factors" yaml:"factors"`
}

// PackMetadata carries authorship and targeting information
type PackMetadata struct {
	Author         string    `json:"author" yaml:"author"`
	Tags           []string  `json:"tags" yaml:"tags"`
	TargetAudience string    `json:"target_audience" yaml:"target_audience"`
	Language       string    `json:"language" yaml:"language"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" yaml:"updated_at"`
}

// ListFilters defines filters for listing packs
type ListFilters struct {
	Status PackStatus
	Limit  int
	Offset int
}

// ActivateRequest represents a request to activate a pack.
// RequestID deduplicates retried activations; optional.
type ActivateRequest struct {
	PackID    string `json:"pack_id"`
	RequestID string `json:"request_id,omitempty"`
}

// RollbackRequest represents a request to restore a previous pack
type RollbackRequest struct {
	BackupID  string `json:"backup_id"`
	RequestID string `json:"request_id,omitempty"`
}

// UploadResponse is returned after a pack upload
type UploadResponse struct {
	Valid       bool              `json:"valid"`
	PackID      string            `json:"pack_id,omitempty"`
	Name        string            `json:"name,omitempty"`
	Version     string            `json:"version,omitempty"`
	Warnings    []ValidationIssue `json:"warnings,omitempty"`
	Performance ValidationTiming  `json:"performance"`
}

// ActivationEvent is broadcast to event-stream subscribers on activation
type ActivationEvent struct {
	PackID     string    `json:"pack_id"`
	Name       string    `json:"name"`
	Version    string    `json:"version"`
	PreviousID string    `json:"previous_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
