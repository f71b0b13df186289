package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/OpenNSW/formengine/internal/form/model"
)

// DateLayout is the wire format of date fields. RFC 3339 timestamps are accepted as well.
const DateLayout = "2006-01-02"

var (
	formatValidator = validator.New()
	phonePattern    = regexp.MustCompile(`^\+?[0-9][0-9 ()\-.]{5,18}[0-9]$`)
)

// ValidateField checks one field against its resolved state. A nil result means valid.
//
// Hidden fields are always valid, whatever their resolved requiredness or stored value.
// A blank value fails only when the field is required. Any other value must pass the type's
// checks, which see the exact string that will be submitted.
func ValidateField(field *model.Field, res Resolution, value model.Value) *model.FieldError {
	if !res.Visible || !field.Type.AcceptsInput() {
		return nil
	}
	if value.IsBlank() {
		if res.Required {
			return fieldError(field, model.ErrCodeRequired, fmt.Sprintf("%s is required", field.DisplayLabel()))
		}
		return nil
	}
	if fe := checkFormat(field, value); fe != nil {
		return fe
	}
	if fe := checkBounds(field, value); fe != nil {
		return fe
	}
	return checkPattern(field, value)
}

// ValidateStage validates the visible fields of a stage and returns their errors in field order.
func ValidateStage(stage *model.Stage, store *model.ValueStore) []model.FieldError {
	var errs []model.FieldError
	for i := range stage.Fields {
		f := &stage.Fields[i]
		if fe := ValidateField(f, Resolve(f, store), store.Value(f.ID)); fe != nil {
			errs = append(errs, *fe)
		}
	}
	return errs
}

// ValidateForm validates every stage.
func ValidateForm(def *model.FormDefinition, store *model.ValueStore) []model.FieldError {
	return ValidateResolved(def, store, ResolveAll(def, store))
}

// ValidateResolved validates every field of the form against resolutions computed by the
// caller. A field missing from resolutions counts as hidden.
func ValidateResolved(def *model.FormDefinition, store *model.ValueStore, resolutions Resolutions) []model.FieldError {
	var errs []model.FieldError
	for _, f := range def.Fields() {
		if fe := ValidateField(f, resolutions[f.ID], store.Value(f.ID)); fe != nil {
			errs = append(errs, *fe)
		}
	}
	return errs
}

func checkFormat(field *model.Field, value model.Value) *model.FieldError {
	label := field.DisplayLabel()
	if value.IsList() && !field.Type.IsMultiValued() {
		return fieldError(field, model.ErrCodeInvalidFormat, fmt.Sprintf("%s accepts a single value", label))
	}
	text := value.Text()

	switch field.Type {
	case model.FieldTypeText, model.FieldTypeTextarea, model.FieldTypePassword, model.FieldTypeFile, model.FieldTypeStaticText:
		return nil
	case model.FieldTypeEmail:
		if formatValidator.Var(text, "email") != nil {
			return fieldError(field, model.ErrCodeInvalidFormat, fmt.Sprintf("%s must be a valid email address", label))
		}
	case model.FieldTypeURL:
		if formatValidator.Var(text, "url") != nil {
			return fieldError(field, model.ErrCodeInvalidFormat, fmt.Sprintf("%s must be a valid URL", label))
		}
	case model.FieldTypePhone:
		if !phonePattern.MatchString(text) {
			return fieldError(field, model.ErrCodeInvalidFormat, fmt.Sprintf("%s must be a valid phone number", label))
		}
	case model.FieldTypeNumber:
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			return fieldError(field, model.ErrCodeInvalidFormat, fmt.Sprintf("%s must be a number", label))
		}
	case model.FieldTypeDate:
		if _, err := ParseDate(text); err != nil {
			return fieldError(field, model.ErrCodeInvalidFormat, fmt.Sprintf("%s must be a date in YYYY-MM-DD format", label))
		}
	case model.FieldTypeSelect, model.FieldTypeRadio:
		if !field.HasOption(value.Text()) {
			return fieldError(field, model.ErrCodeInvalidOption, fmt.Sprintf("%q is not a valid option for %s", value.Text(), label))
		}
	case model.FieldTypeCheckboxGroup:
		for _, item := range value.Items() {
			if !field.HasOption(item) {
				return fieldError(field, model.ErrCodeInvalidOption, fmt.Sprintf("%q is not a valid option for %s", item, label))
			}
		}
	default:
		return fieldError(field, model.ErrCodeInvalidFormat, fmt.Sprintf("%s has unsupported type %q", label, field.Type))
	}
	return nil
}

func checkBounds(field *model.Field, value model.Value) *model.FieldError {
	v := field.Validation
	if v == nil || (v.Min == nil && v.Max == nil) {
		return nil
	}
	label := field.DisplayLabel()

	var (
		measure  float64
		tooSmall string
		tooLarge string
	)
	switch field.Type {
	case model.FieldTypeText, model.FieldTypeTextarea, model.FieldTypePassword:
		measure = float64(value.Len())
		tooSmall = fmt.Sprintf("%s must be at least %s characters", label, formatBound(v.Min))
		tooLarge = fmt.Sprintf("%s must be at most %s characters", label, formatBound(v.Max))
	case model.FieldTypeCheckboxGroup:
		measure = float64(len(value.Items()))
		tooSmall = fmt.Sprintf("Select at least %s options for %s", formatBound(v.Min), label)
		tooLarge = fmt.Sprintf("Select at most %s options for %s", formatBound(v.Max), label)
	default:
		n, err := strconv.ParseFloat(value.Text(), 64)
		if err != nil {
			// Bounds apply only to numeric values here.
			return nil
		}
		measure = n
		tooSmall = fmt.Sprintf("%s must be at least %s", label, formatBound(v.Min))
		tooLarge = fmt.Sprintf("%s must be at most %s", label, formatBound(v.Max))
	}

	if v.Min != nil && measure < *v.Min {
		return fieldError(field, model.ErrCodeOutOfRange, messageOr(v.Message, tooSmall))
	}
	if v.Max != nil && measure > *v.Max {
		return fieldError(field, model.ErrCodeOutOfRange, messageOr(v.Message, tooLarge))
	}
	return nil
}

func checkPattern(field *model.Field, value model.Value) *model.FieldError {
	re := field.Validation.Regexp()
	if re == nil {
		return nil
	}
	if !re.MatchString(value.Text()) {
		generated := fmt.Sprintf("%s is not in the expected format", field.DisplayLabel())
		return fieldError(field, model.ErrCodePatternMismatch, messageOr(field.Validation.Message, generated))
	}
	return nil
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func fieldError(field *model.Field, code, message string) *model.FieldError {
	return &model.FieldError{FieldID: field.ID, Code: code, Message: message}
}

func messageOr(custom, generated string) string {
	if custom != "" {
		return custom
	}
	return generated
}

func formatBound(b *float64) string {
	if b == nil {
		return ""
	}
	return strconv.FormatFloat(*b, 'f', -1, 64)
}
