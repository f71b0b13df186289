package model

// FieldSubmission is one field/value pair on the wire.
type FieldSubmission struct {
	FieldID string `json:"fieldId" binding:"required"`
	Value   string `json:"value"`
}

// Submission is the visibility-filtered, serialized payload handed to the transport boundary.
type Submission struct {
	FormID           string            `json:"formId"`
	FieldSubmissions []FieldSubmission `json:"fieldSubmissions" binding:"dive"`
}

// Outcome is what the transport boundary reports back for a submission.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Field validation error codes
const (
	ErrCodeRequired        = "REQUIRED"
	ErrCodeInvalidFormat   = "INVALID_FORMAT"
	ErrCodeOutOfRange      = "OUT_OF_RANGE"
	ErrCodePatternMismatch = "PATTERN_MISMATCH"
	ErrCodeInvalidOption   = "INVALID_OPTION"
	ErrCodeHiddenField     = "HIDDEN_FIELD"
	ErrCodeUnknownField    = "UNKNOWN_FIELD"
)

// FieldError is a user-facing validation failure attached to one field.
// It is returned as data and never used as a Go error.
type FieldError struct {
	FieldID string `json:"fieldId"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
