package definition

// Document is the authoring shape of a form definition as fetched or read from disk.
// Everything except field ids and types is optional; Normalize fills the gaps.
//
// A document either groups fields into stages or lists them at the top level,
// in which case the whole list becomes one implicit stage.
type Document struct {
	ID          string          `json:"id" yaml:"id"`
	Title       string          `json:"title" yaml:"title"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Stages      []StageDocument `json:"stages,omitempty" yaml:"stages,omitempty"`
	Fields      []FieldDocument `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// StageDocument groups fields. Order is an explicit sort key; ties keep declaration order.
type StageDocument struct {
	ID          string          `json:"id" yaml:"id"`
	Title       string          `json:"title" yaml:"title"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Order       *int            `json:"order,omitempty" yaml:"order,omitempty"`
	Fields      []FieldDocument `json:"fields" yaml:"fields"`
}

type FieldDocument struct {
	ID          string              `json:"id" yaml:"id"`
	Name        string              `json:"name,omitempty" yaml:"name,omitempty"`
	Label       string              `json:"label,omitempty" yaml:"label,omitempty"`
	Type        string              `json:"type" yaml:"type"`
	Placeholder string              `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Options     []string            `json:"options,omitempty" yaml:"options,omitempty"`
	Validation  *ValidationDocument `json:"validation,omitempty" yaml:"validation,omitempty"`
	Required    bool                `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any                 `json:"default,omitempty" yaml:"default,omitempty"`
	Order       *int                `json:"order,omitempty" yaml:"order,omitempty"`
	Conditions  []ConditionDocument `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

type ValidationDocument struct {
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Message string   `json:"message,omitempty" yaml:"message,omitempty"`
}

// ConditionDocument accepts "field" as a shorthand for "targetFieldId".
type ConditionDocument struct {
	TargetFieldID string `json:"targetFieldId,omitempty" yaml:"targetFieldId,omitempty"`
	Field         string `json:"field,omitempty" yaml:"field,omitempty"`
	Operator      string `json:"operator" yaml:"operator"`
	Value         any    `json:"value,omitempty" yaml:"value,omitempty"`
	Action        string `json:"action" yaml:"action"`
}

func (c ConditionDocument) target() string {
	if c.TargetFieldID != "" {
		return c.TargetFieldID
	}
	return c.Field
}
