package definition

import (
	"fmt"
	"strings"
)

// ErrorCode categorizes a definition error.
type ErrorCode string

const (
	ErrCodeEmptyForm               ErrorCode = "EMPTY_FORM"
	ErrCodeMissingFormID           ErrorCode = "MISSING_FORM_ID"
	ErrCodeMissingFieldID          ErrorCode = "MISSING_FIELD_ID"
	ErrCodeDuplicateFieldID        ErrorCode = "DUPLICATE_FIELD_ID"
	ErrCodeDuplicateStageID        ErrorCode = "DUPLICATE_STAGE_ID"
	ErrCodeUnknownFieldType        ErrorCode = "UNKNOWN_FIELD_TYPE"
	ErrCodeUnknownOperator         ErrorCode = "UNKNOWN_OPERATOR"
	ErrCodeUnknownAction           ErrorCode = "UNKNOWN_ACTION"
	ErrCodeDanglingConditionTarget ErrorCode = "DANGLING_CONDITION_TARGET"
	ErrCodeInvalidConditionValue   ErrorCode = "INVALID_CONDITION_VALUE"
	ErrCodeInvalidPattern          ErrorCode = "INVALID_PATTERN"
	ErrCodeInvalidRange            ErrorCode = "INVALID_RANGE"
	ErrCodeMissingOptions          ErrorCode = "MISSING_OPTIONS"
	ErrCodeDelimiterInOption       ErrorCode = "DELIMITER_IN_OPTION"
	ErrCodeInvalidDefault          ErrorCode = "INVALID_DEFAULT"
	ErrCodeDecode                  ErrorCode = "DECODE_FAILED"
)

// Error is a single problem found in a form definition. Path locates it, e.g. "stages[1].fields[0].conditions[2]".
type Error struct {
	Code    ErrorCode `json:"code"`
	Path    string    `json:"path,omitempty"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
}

// Is matches another *Error by code so callers can use errors.Is with a code-only template.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Errors is every problem found while loading one definition. A definition with any error is refused.
type Errors []*Error

func (errs Errors) Error() string {
	if len(errs) == 1 {
		return "invalid form definition: " + errs[0].Error()
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return fmt.Sprintf("invalid form definition (%d problems): %s", len(errs), strings.Join(parts, "; "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (errs Errors) Unwrap() []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}

// HasCode reports whether any collected error carries code.
func (errs Errors) HasCode(code ErrorCode) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}

func (errs *Errors) add(code ErrorCode, path, format string, args ...any) {
	*errs = append(*errs, &Error{Code: code, Path: path, Message: fmt.Sprintf(format, args...)})
}
