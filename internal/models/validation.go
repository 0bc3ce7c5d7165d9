package models

// Validation issue codes
const (
	CodeSchemaError       = "SCHEMA_ERROR"
	CodeSecurityViolation = "SECURITY_VIOLATION"
	CodeTimeout           = "TIMEOUT"
	CodeExcessiveSize     = "EXCESSIVE_SIZE"
	CodeWeightDrift       = "WEIGHT_DRIFT"
)

// ValidationIssue is a single error or warning produced by validation
type ValidationIssue struct {
	Path       string `json:"path"`
	Message    string `json:"message"`
	Code       string `json:"code"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ValidationTiming records how long validation took against its budget.
// TargetMet is observability only and never affects validity.
type ValidationTiming struct {
	DurationMs int64 `json:"duration_ms"`
	TargetMs   int64 `json:"target_ms"`
	TargetMet  bool  `json:"target_met"`
}

// ValidationResult is produced fresh on every validation call and never
// mutated afterwards. Only the derived pack status is persisted.
type ValidationResult struct {
	IsValid     bool              `json:"is_valid"`
	Errors      []ValidationIssue `json:"errors"`
	Warnings    []ValidationIssue `json:"warnings"`
	Performance ValidationTiming  `json:"performance"`
}

// ErrorMessages returns the message of every error, for aggregated display
func (r *ValidationResult) ErrorMessages() []string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

// Status derives the pack status this result implies
func (r *ValidationResult) Status() PackStatus {
	if r.IsValid {
		return StatusValid
	}
	return StatusInvalid
}
