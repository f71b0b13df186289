package engine

import (
	"errors"
	"fmt"

	"github.com/OpenNSW/formengine/internal/form/model"
)

var (
	ErrUnknownField         = errors.New("unknown field")
	ErrReadOnlyField        = errors.New("field does not accept input")
	ErrSubmissionInProgress = errors.New("submission already in progress")
	ErrSessionClosed        = errors.New("session already submitted")
	ErrFinalStage           = errors.New("already on the final stage")
	ErrFirstStage           = errors.New("already on the first stage")
	ErrNotFinalStage        = errors.New("submit is only allowed from the final stage")
	ErrNoSubmitter          = errors.New("no submitter configured")
)

// SubmissionError reports a failed hand-off to the transport boundary. It is kept apart from
// field validation errors so callers can offer a generic retry instead of pointing at a field.
// The session is left exactly as it was before the attempt.
type SubmissionError struct {
	Cause   error
	Outcome model.Outcome
}

func (e *SubmissionError) Error() string {
	if e.Cause == nil {
		return "form submission failed"
	}
	return fmt.Sprintf("form submission failed: %v", e.Cause)
}

func (e *SubmissionError) Unwrap() error { return e.Cause }
