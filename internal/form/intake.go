package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/OpenNSW/formengine/internal/form/engine"
	"github.com/OpenNSW/formengine/internal/form/model"
)

// RejectedError lists why the intake refused a submission.
type RejectedError struct {
	FormID string
	Errors []model.FieldError
}

func (e *RejectedError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("submission for form %s rejected: %s", e.FormID, e.Errors[0].Message)
	}
	return fmt.Sprintf("submission for form %s rejected: %d field errors", e.FormID, len(e.Errors))
}

// Intake accepts finished submissions. It rebuilds a value store from the payload and re-runs
// resolution and validation, so a client cannot submit a field the rules hide or skip a
// required one. Fields whose rules depend on a field left off the payload keep the sender's
// resolution: they are accepted when present and not required when absent.
type Intake struct {
	db    *gorm.DB
	forms *Service
}

func NewIntake(db *gorm.DB, forms *Service) *Intake {
	return &Intake{db: db, forms: forms}
}

// Receive validates and stores a submission.
func (i *Intake) Receive(ctx context.Context, submission model.Submission) (*model.SubmissionRecord, error) {
	record, err := i.forms.activeRecord(ctx, submission.FormID)
	if err != nil {
		return nil, err
	}
	def, err := i.forms.Fetch(ctx, submission.FormID)
	if err != nil {
		return nil, err
	}

	store := model.NewValueStore()
	var fieldErrs []model.FieldError
	submitted := make([]string, 0, len(submission.FieldSubmissions))
	seen := make(map[string]bool, len(submission.FieldSubmissions))

	for _, fs := range submission.FieldSubmissions {
		f, ok := def.FieldByID(fs.FieldID)
		if !ok || !f.Type.AcceptsInput() {
			fieldErrs = append(fieldErrs, model.FieldError{
				FieldID: fs.FieldID,
				Code:    model.ErrCodeUnknownField,
				Message: fmt.Sprintf("form %s has no input field %q", def.ID, fs.FieldID),
			})
			continue
		}
		if seen[fs.FieldID] {
			fieldErrs = append(fieldErrs, model.FieldError{
				FieldID: fs.FieldID,
				Code:    model.ErrCodeInvalidFormat,
				Message: fmt.Sprintf("%s was submitted more than once", f.DisplayLabel()),
			})
			continue
		}
		seen[fs.FieldID] = true
		submitted = append(submitted, fs.FieldID)

		if f.Type.IsMultiValued() {
			store.Set(fs.FieldID, model.List(engine.ParseMultiValue(fs.Value)...))
		} else {
			store.Set(fs.FieldID, model.Scalar(fs.Value))
		}
	}

	resolutions := engine.ResolveAll(def, store)
	for id := range undetermined(def, seen) {
		// Submitted means the sender resolved it visible. Requiredness is the sender's call too.
		resolutions[id] = engine.Resolution{Visible: seen[id]}
	}
	for _, id := range submitted {
		if !resolutions.Visible(id) {
			f, _ := def.FieldByID(id)
			fieldErrs = append(fieldErrs, model.FieldError{
				FieldID: id,
				Code:    model.ErrCodeHiddenField,
				Message: fmt.Sprintf("%s is hidden and cannot be submitted", f.DisplayLabel()),
			})
		}
	}
	fieldErrs = append(fieldErrs, engine.ValidateResolved(def, store, resolutions)...)

	if len(fieldErrs) > 0 {
		slog.WarnContext(ctx, "submission rejected", "formId", def.ID, "errors", len(fieldErrs))
		return nil, &RejectedError{FormID: def.ID, Errors: fieldErrs}
	}

	canonical := engine.Serialize(def, store, resolutions)
	fields, err := json.Marshal(canonical.FieldSubmissions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal field submissions: %w", err)
	}

	sub := &model.SubmissionRecord{
		FormRecordID: record.ID,
		FormKey:      def.ID,
		Fields:       datatypes.JSON(fields),
	}
	if err := i.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to store submission: %w", err)
	}

	slog.InfoContext(ctx, "submission received", "formId", def.ID, "submissionId", sub.ID, "fields", len(canonical.FieldSubmissions))
	return sub, nil
}

// undetermined returns the fields whose conditions read an input field missing from the
// payload. Senders leave hidden fields off but keep evaluating rules against their values,
// so the resolution of these fields cannot be rebuilt from the payload alone.
func undetermined(def *model.FormDefinition, present map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for _, f := range def.Fields() {
		for _, cond := range f.Conditions {
			target, ok := def.FieldByID(cond.TargetFieldID)
			if ok && target.Type.AcceptsInput() && !present[target.ID] {
				out[f.ID] = true
				break
			}
		}
	}
	return out
}

// List returns a page of a form's submissions, newest first.
func (i *Intake) List(ctx context.Context, formID string, offset, limit int) ([]model.SubmissionRecord, int64, error) {
	query := func() *gorm.DB {
		return i.db.WithContext(ctx).Model(&model.SubmissionRecord{}).Where("form_key = ?", formID)
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	var records []model.SubmissionRecord
	if err := query().Order("created_at DESC").Offset(offset).Limit(limit).Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}
	return records, total, nil
}

// Submitter adapts the intake to engine.Submitter so sessions can submit in-process.
func (i *Intake) Submitter() engine.Submitter {
	return engine.SubmitterFunc(func(ctx context.Context, submission model.Submission) (model.Outcome, error) {
		record, err := i.Receive(ctx, submission)
		if err != nil {
			var rejected *RejectedError
			if errors.As(err, &rejected) {
				return model.Outcome{Success: false, Message: rejected.Error()}, nil
			}
			return model.Outcome{}, err
		}
		return model.Outcome{Success: true, Message: fmt.Sprintf("submission %s received", record.ID)}, nil
	})
}
