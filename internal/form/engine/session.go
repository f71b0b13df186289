package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OpenNSW/formengine/internal/form/model"
)

// Submitter is the transport boundary that receives a finished submission.
type Submitter interface {
	Submit(ctx context.Context, submission model.Submission) (model.Outcome, error)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, submission model.Submission) (model.Outcome, error)

func (f SubmitterFunc) Submit(ctx context.Context, submission model.Submission) (model.Outcome, error) {
	return f(ctx, submission)
}

// StepResult is the outcome of Next or Submit. Field errors mean the gate rejected the move.
type StepResult struct {
	Errors    []model.FieldError `json:"errors,omitempty"`
	Submitted bool               `json:"submitted"`
	Outcome   *model.Outcome     `json:"outcome,omitempty"`
}

// OK reports whether the step went through.
func (r StepResult) OK() bool {
	return len(r.Errors) == 0
}

// Session is one user's pass through one form. It owns its value store and navigator
// exclusively. All methods are safe for concurrent use; a submission in flight blocks
// every other mutation with ErrSubmissionInProgress.
type Session struct {
	id        uuid.UUID
	def       *model.FormDefinition
	submitter Submitter
	createdAt time.Time

	mu        sync.Mutex
	store     *model.ValueStore
	nav       *Navigator
	updatedAt time.Time
	outcome   *model.Outcome
}

// NewSession starts a session on stage 0 with the field defaults applied.
// Checkbox groups without a default start as an empty list.
func NewSession(def *model.FormDefinition, submitter Submitter) *Session {
	store := model.NewValueStore()
	for _, f := range def.Fields() {
		switch {
		case f.Default != nil:
			store.Set(f.ID, *f.Default)
		case f.Type.IsMultiValued():
			store.Set(f.ID, model.List())
		}
	}
	now := time.Now()
	return &Session{
		id:        uuid.New(),
		def:       def,
		submitter: submitter,
		createdAt: now,
		store:     store,
		nav:       NewNavigator(def),
		updatedAt: now,
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) Definition() *model.FormDefinition {
	return s.def
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.Status()
}

// Value returns the stored value of a field, hidden or not.
func (s *Session) Value(fieldID string) model.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Value(fieldID)
}

// Resolutions re-derives visibility and requiredness of every field.
func (s *Session) Resolutions() Resolutions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ResolveAll(s.def, s.store)
}

func (s *Session) Navigation() NavigationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.State()
}

func (s *Session) CanAdvance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.CanAdvance(s.store)
}

// SetValue records user input for any field of the form, including fields on stages
// not reached yet and fields currently hidden. A scalar written to a checkbox group is
// split on the multi-value delimiter. Formatted scalars such as emails are stored trimmed.
func (s *Session) SetValue(fieldID string, v model.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.writableField(fieldID)
	if err != nil {
		return err
	}
	switch {
	case f.Type.IsMultiValued() && !v.IsList():
		v = model.List(ParseMultiValue(v.Text())...)
	case f.Type.TrimsInput() && !v.IsList():
		v = model.Scalar(strings.TrimSpace(v.Text()))
	}
	s.store.Set(fieldID, v)
	s.updatedAt = time.Now()
	return nil
}

// ClearValue empties a field.
func (s *Session) ClearValue(fieldID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.writableField(fieldID)
	if err != nil {
		return err
	}
	if f.Type.IsMultiValued() {
		s.store.Set(fieldID, model.List())
	} else {
		s.store.Unset(fieldID)
	}
	s.updatedAt = time.Now()
	return nil
}

// Next validates the current stage and advances. On the final stage it submits.
func (s *Session) Next(ctx context.Context) (StepResult, error) {
	s.mu.Lock()
	if s.nav.Status() == StatusFilling && s.nav.IsFinalStage() {
		s.mu.Unlock()
		return s.Submit(ctx)
	}
	defer s.mu.Unlock()

	errs, err := s.nav.Next(s.store)
	if err != nil {
		return StepResult{}, err
	}
	s.updatedAt = time.Now()
	return StepResult{Errors: errs}, nil
}

// Previous moves back one stage. Values are kept.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.nav.Previous(); err != nil {
		return err
	}
	s.updatedAt = time.Now()
	return nil
}

// Submit validates the final stage, serializes the visible fields and hands them to the
// submitter. The lock is released for the duration of the call; the SUBMITTING status keeps
// every other mutation out. A failure leaves values and navigation exactly as they were and
// returns a *SubmissionError. On success the store is discarded.
func (s *Session) Submit(ctx context.Context) (StepResult, error) {
	s.mu.Lock()
	if s.submitter == nil {
		s.mu.Unlock()
		return StepResult{}, ErrNoSubmitter
	}
	errs, err := s.nav.BeginSubmit(s.store)
	if err != nil || len(errs) > 0 {
		s.mu.Unlock()
		return StepResult{Errors: errs}, err
	}
	submission := Serialize(s.def, s.store, ResolveAll(s.def, s.store))
	s.mu.Unlock()

	outcome, err := s.submitter.Submit(ctx, submission)
	if err == nil && !outcome.Success {
		msg := outcome.Message
		if msg == "" {
			msg = "submission rejected"
		}
		err = errors.New(msg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()

	if err != nil {
		if navErr := s.nav.CompleteSubmit(false); navErr != nil {
			slog.Error("failed to restore session after submission failure", "sessionId", s.id, "error", navErr)
		}
		slog.Warn("form submission failed", "sessionId", s.id, "formId", s.def.ID, "error", err)
		return StepResult{}, &SubmissionError{Cause: err, Outcome: outcome}
	}

	if navErr := s.nav.CompleteSubmit(true); navErr != nil {
		return StepResult{}, navErr
	}
	s.store.Clear()
	s.outcome = &outcome
	slog.Info("form submitted", "sessionId", s.id, "formId", s.def.ID, "fields", len(submission.FieldSubmissions))
	return StepResult{Submitted: true, Outcome: &outcome}, nil
}

func (s *Session) writableField(fieldID string) (*model.Field, error) {
	switch s.nav.Status() {
	case StatusSubmitting:
		return nil, ErrSubmissionInProgress
	case StatusSubmitted:
		return nil, ErrSessionClosed
	}
	f, ok := s.def.FieldByID(fieldID)
	if !ok {
		return nil, ErrUnknownField
	}
	if !f.Type.AcceptsInput() {
		return nil, ErrReadOnlyField
	}
	return f, nil
}

// FieldView is the render state of one field.
type FieldView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name,omitempty"`
	Label       string          `json:"label"`
	Type        model.FieldType `json:"type"`
	Placeholder string          `json:"placeholder,omitempty"`
	Options     []string        `json:"options,omitempty"`
	Visible     bool            `json:"visible"`
	Required    bool            `json:"required"`
	Value       model.Value     `json:"value"`
}

// StageView is the render state of the current stage.
type StageView struct {
	ID          string      `json:"id"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Fields      []FieldView `json:"fields"`
}

// View is everything a presentation layer needs to draw the session.
type View struct {
	SessionID    uuid.UUID          `json:"sessionId"`
	FormID       string             `json:"formId"`
	Title        string             `json:"title"`
	Navigation   NavigationState    `json:"navigation"`
	Progress     int                `json:"progress"`
	CanAdvance   bool               `json:"canAdvance"`
	IsFinalStage bool               `json:"isFinalStage"`
	Stage        *StageView         `json:"stage,omitempty"`
	Errors       []model.FieldError `json:"errors,omitempty"`
	Outcome      *model.Outcome     `json:"outcome,omitempty"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// View snapshots the session. Errors lists the current stage's failures so a client can
// show them inline; they do not block anything until Next or Submit is attempted.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	nav := s.nav.State()
	v := View{
		SessionID:    s.id,
		FormID:       s.def.ID,
		Title:        s.def.Title,
		Navigation:   nav,
		Progress:     Progress(nav),
		CanAdvance:   s.nav.CanAdvance(s.store),
		IsFinalStage: s.nav.IsFinalStage(),
		Outcome:      s.outcome,
		UpdatedAt:    s.updatedAt,
	}
	if nav.Status == StatusSubmitted {
		return v
	}

	stage := s.nav.CurrentStage()
	if stage == nil {
		return v
	}
	sv := &StageView{ID: stage.ID, Title: stage.Title, Description: stage.Description}
	for i := range stage.Fields {
		f := &stage.Fields[i]
		res := Resolve(f, s.store)
		sv.Fields = append(sv.Fields, FieldView{
			ID:          f.ID,
			Name:        f.Name,
			Label:       f.DisplayLabel(),
			Type:        f.Type,
			Placeholder: f.Placeholder,
			Options:     f.Options,
			Visible:     res.Visible,
			Required:    res.Required,
			Value:       s.store.Value(f.ID),
		})
	}
	v.Stage = sv
	v.Errors = ValidateStage(stage, s.store)
	return v
}
