package model

import "regexp"

// FieldType is the closed set of input kinds a field can declare.
type FieldType string

const (
	FieldTypeText          FieldType = "text"
	FieldTypeTextarea      FieldType = "textarea"
	FieldTypeEmail         FieldType = "email"
	FieldTypePhone         FieldType = "phone"
	FieldTypeNumber        FieldType = "number"
	FieldTypeSelect        FieldType = "select"
	FieldTypeRadio         FieldType = "radio"
	FieldTypeCheckboxGroup FieldType = "checkbox-group"
	FieldTypeDate          FieldType = "date"
	FieldTypeFile          FieldType = "file"
	FieldTypeURL           FieldType = "url"
	FieldTypePassword      FieldType = "password"
	FieldTypeStaticText    FieldType = "static-text"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeTextarea, FieldTypeEmail, FieldTypePhone, FieldTypeNumber,
		FieldTypeSelect, FieldTypeRadio, FieldTypeCheckboxGroup, FieldTypeDate, FieldTypeFile,
		FieldTypeURL, FieldTypePassword, FieldTypeStaticText:
		return true
	}
	return false
}

// IsMultiValued reports whether values of this type are lists.
func (t FieldType) IsMultiValued() bool {
	return t == FieldTypeCheckboxGroup
}

// AcceptsInput is false for display-only fields, which hold no value and are never submitted.
func (t FieldType) AcceptsInput() bool {
	return t != FieldTypeStaticText
}

// HasOptions reports whether the type picks from a fixed option list.
func (t FieldType) HasOptions() bool {
	switch t {
	case FieldTypeSelect, FieldTypeRadio, FieldTypeCheckboxGroup:
		return true
	}
	return false
}

// TrimsInput reports whether surrounding whitespace is stripped from input of this type.
func (t FieldType) TrimsInput() bool {
	switch t {
	case FieldTypeEmail, FieldTypePhone, FieldTypeNumber, FieldTypeDate, FieldTypeURL:
		return true
	}
	return false
}

// Operator compares a stored value against a condition's comparand.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorContains    Operator = "contains"
	OperatorNotContains Operator = "not_contains"
	OperatorIsEmpty     Operator = "is_empty"
	OperatorIsNotEmpty  Operator = "is_not_empty"
)

func (o Operator) Valid() bool {
	switch o {
	case OperatorEquals, OperatorNotEquals, OperatorContains, OperatorNotContains, OperatorIsEmpty, OperatorIsNotEmpty:
		return true
	}
	return false
}

// Action is applied to the owning field when its condition holds.
type Action string

const (
	ActionShow         Action = "show"
	ActionHide         Action = "hide"
	ActionRequire      Action = "require"
	ActionMakeOptional Action = "make_optional"
)

func (a Action) Valid() bool {
	switch a {
	case ActionShow, ActionHide, ActionRequire, ActionMakeOptional:
		return true
	}
	return false
}

// Condition reads as "if <TargetFieldID> <Operator> <Value> then <Action>".
type Condition struct {
	TargetFieldID string   `json:"targetFieldId"`
	Operator      Operator `json:"operator"`
	Value         string   `json:"value,omitempty"`
	Action        Action   `json:"action"`
}

// Validation holds the optional constraints of a field.
// Min and Max bound the numeric value of number fields, the length of text fields
// and the number of selected items of checkbox groups.
type Validation struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
	Message string   `json:"message,omitempty"` // Overrides generated range and pattern messages

	re *regexp.Regexp
}

// Compile compiles Pattern once so sessions sharing the definition never compile it again.
func (v *Validation) Compile() error {
	if v == nil || v.Pattern == "" {
		return nil
	}
	re, err := regexp.Compile(v.Pattern)
	if err != nil {
		return err
	}
	v.re = re
	return nil
}

// Regexp returns the compiled pattern, compiling it on the fly when the definition
// was not built by the loader. A nil result means there is no usable pattern.
func (v *Validation) Regexp() *regexp.Regexp {
	if v == nil || v.Pattern == "" {
		return nil
	}
	if v.re != nil {
		return v.re
	}
	re, err := regexp.Compile(v.Pattern)
	if err != nil {
		return nil
	}
	return re
}

// Field is a single typed data-entry unit.
type Field struct {
	ID           string      `json:"id"`
	Name         string      `json:"name,omitempty"`
	Label        string      `json:"label,omitempty"`
	Type         FieldType   `json:"type"`
	Placeholder  string      `json:"placeholder,omitempty"`
	Options      []string    `json:"options,omitempty"`
	Validation   *Validation `json:"validation,omitempty"`
	BaseRequired bool        `json:"required,omitempty"`
	Default      *Value      `json:"default,omitempty"`
	Conditions   []Condition `json:"conditions,omitempty"`
}

// DisplayLabel is the label used in user-facing messages.
func (f *Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	if f.Name != "" {
		return f.Name
	}
	return f.ID
}

// HasOption reports whether value is one of the field's declared options.
func (f *Field) HasOption(value string) bool {
	for _, o := range f.Options {
		if o == value {
			return true
		}
	}
	return false
}

// Stage is one step of a multi-step form.
type Stage struct {
	ID          string  `json:"id"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Order       int     `json:"order"`
	Fields      []Field `json:"fields"`
}

// FormDefinition is a normalized, validated form. Stages are already in presentation order.
type FormDefinition struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Stages      []Stage `json:"stages"`
}

// StageCount returns the number of stages.
func (d *FormDefinition) StageCount() int {
	return len(d.Stages)
}

// IsSingleStage reports whether the form degenerates to a single step.
func (d *FormDefinition) IsSingleStage() bool {
	return len(d.Stages) == 1
}

// Fields returns every field in stage order, then declaration order.
func (d *FormDefinition) Fields() []*Field {
	var fields []*Field
	for i := range d.Stages {
		for j := range d.Stages[i].Fields {
			fields = append(fields, &d.Stages[i].Fields[j])
		}
	}
	return fields
}

// FieldByID looks a field up by id. Forms hold tens of fields, so a scan is enough.
func (d *FormDefinition) FieldByID(id string) (*Field, bool) {
	for i := range d.Stages {
		for j := range d.Stages[i].Fields {
			if d.Stages[i].Fields[j].ID == id {
				return &d.Stages[i].Fields[j], true
			}
		}
	}
	return nil, false
}

// StageIndexOf returns the index of the stage holding the field, or -1.
func (d *FormDefinition) StageIndexOf(fieldID string) int {
	for i := range d.Stages {
		for j := range d.Stages[i].Fields {
			if d.Stages[i].Fields[j].ID == fieldID {
				return i
			}
		}
	}
	return -1
}
