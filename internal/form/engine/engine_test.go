package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/OpenNSW/formengine/internal/form/model"
)

func ptr(f float64) *float64 { return &f }

// applicationForm has a contact stage where referral_code becomes required for agency
// addresses, followed by a skills stage.
func applicationForm() *model.FormDefinition {
	return &model.FormDefinition{
		ID:    "opportunity-application",
		Title: "Opportunity Application",
		Stages: []model.Stage{
			{
				ID:    "contact",
				Title: "Contact",
				Fields: []model.Field{
					{ID: "intro", Label: "Intro", Type: model.FieldTypeStaticText},
					{ID: "email", Label: "Email", Type: model.FieldTypeEmail, BaseRequired: true},
					{
						ID:    "referral_code",
						Label: "Referral Code",
						Type:  model.FieldTypeText,
						Conditions: []model.Condition{
							{TargetFieldID: "email", Operator: model.OperatorContains, Value: "@agency.rw", Action: model.ActionRequire},
						},
					},
				},
			},
			{
				ID:    "skills",
				Title: "Skills",
				Fields: []model.Field{
					{ID: "languages", Label: "Languages", Type: model.FieldTypeCheckboxGroup, Options: []string{"A", "B", "C"}, BaseRequired: true},
					{ID: "cv", Label: "CV", Type: model.FieldTypeFile},
				},
			},
		},
	}
}

// licenseForm is a single-stage form where answering "No" hides the license number.
func licenseForm() *model.FormDefinition {
	return &model.FormDefinition{
		ID:    "public-intake",
		Title: "Public Intake",
		Stages: []model.Stage{
			{
				ID: "main",
				Fields: []model.Field{
					{ID: "has_license", Label: "Has License", Type: model.FieldTypeRadio, Options: []string{"Yes", "No"}, BaseRequired: true},
					{
						ID:           "license_number",
						Label:        "License Number",
						Type:         model.FieldTypeText,
						BaseRequired: true,
						Conditions: []model.Condition{
							{TargetFieldID: "has_license", Operator: model.OperatorEquals, Value: "No", Action: model.ActionHide},
						},
					},
				},
			},
		},
	}
}

func storeOf(values map[string]model.Value) *model.ValueStore {
	store := model.NewValueStore()
	for k, v := range values {
		store.Set(k, v)
	}
	return store
}

func TestEvaluate(t *testing.T) {
	store := storeOf(map[string]model.Value{
		"email":     model.Scalar("pilot@agency.rw"),
		"languages": model.List("English", "French"),
		"blank":     model.Scalar("   "),
		"none":      model.List(),
	})

	tests := []struct {
		name string
		cond model.Condition
		want bool
	}{
		{"equals matches exact string", model.Condition{TargetFieldID: "email", Operator: model.OperatorEquals, Value: "pilot@agency.rw"}, true},
		{"equals is case sensitive", model.Condition{TargetFieldID: "email", Operator: model.OperatorEquals, Value: "Pilot@agency.rw"}, false},
		{"not_equals negates equals", model.Condition{TargetFieldID: "email", Operator: model.OperatorNotEquals, Value: "x"}, true},
		{"contains on scalar is substring", model.Condition{TargetFieldID: "email", Operator: model.OperatorContains, Value: "@agency.rw"}, true},
		{"contains on list is membership", model.Condition{TargetFieldID: "languages", Operator: model.OperatorContains, Value: "French"}, true},
		{"contains on list is not substring", model.Condition{TargetFieldID: "languages", Operator: model.OperatorContains, Value: "Fren"}, false},
		{"not_contains on list", model.Condition{TargetFieldID: "languages", Operator: model.OperatorNotContains, Value: "Kinyarwanda"}, true},
		{"equals on list compares canonical text", model.Condition{TargetFieldID: "languages", Operator: model.OperatorEquals, Value: "English,French"}, true},
		{"is_empty is false for whitespace", model.Condition{TargetFieldID: "blank", Operator: model.OperatorIsEmpty}, false},
		{"is_not_empty holds for whitespace", model.Condition{TargetFieldID: "blank", Operator: model.OperatorIsNotEmpty}, true},
		{"is_empty on empty list", model.Condition{TargetFieldID: "none", Operator: model.OperatorIsEmpty}, true},
		{"is_empty on unset target", model.Condition{TargetFieldID: "not_yet_filled", Operator: model.OperatorIsEmpty}, true},
		{"is_not_empty on unset target", model.Condition{TargetFieldID: "not_yet_filled", Operator: model.OperatorIsNotEmpty}, false},
		{"equals empty string on unset target", model.Condition{TargetFieldID: "not_yet_filled", Operator: model.OperatorEquals, Value: ""}, true},
		{"unknown operator is false", model.Condition{TargetFieldID: "email", Operator: "greater_than", Value: "a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.cond, store))
		})
	}
}

func TestResolve(t *testing.T) {
	t.Run("no conditions keeps base state", func(t *testing.T) {
		f := &model.Field{ID: "a", Type: model.FieldTypeText, BaseRequired: true}
		assert.Equal(t, Resolution{Visible: true, Required: true}, Resolve(f, model.NewValueStore()))
	})

	t.Run("last applicable condition wins per axis", func(t *testing.T) {
		f := &model.Field{
			ID:   "details",
			Type: model.FieldTypeText,
			Conditions: []model.Condition{
				{TargetFieldID: "kind", Operator: model.OperatorIsNotEmpty, Action: model.ActionHide},
				{TargetFieldID: "kind", Operator: model.OperatorEquals, Value: "other", Action: model.ActionShow},
				{TargetFieldID: "kind", Operator: model.OperatorEquals, Value: "other", Action: model.ActionRequire},
			},
		}

		res := Resolve(f, storeOf(map[string]model.Value{"kind": model.Scalar("company")}))
		assert.Equal(t, Resolution{Visible: false, Required: false}, res)

		res = Resolve(f, storeOf(map[string]model.Value{"kind": model.Scalar("other")}))
		assert.Equal(t, Resolution{Visible: true, Required: true}, res)

		res = Resolve(f, model.NewValueStore())
		assert.Equal(t, Resolution{Visible: true, Required: false}, res)
	})

	t.Run("make_optional overrides base requiredness", func(t *testing.T) {
		f := &model.Field{
			ID:           "phone",
			Type:         model.FieldTypePhone,
			BaseRequired: true,
			Conditions: []model.Condition{
				{TargetFieldID: "email", Operator: model.OperatorIsNotEmpty, Action: model.ActionMakeOptional},
			},
		}
		res := Resolve(f, storeOf(map[string]model.Value{"email": model.Scalar("a@b.rw")}))
		assert.False(t, res.Required)
	})

	t.Run("static text is never required", func(t *testing.T) {
		f := &model.Field{
			ID:         "note",
			Type:       model.FieldTypeStaticText,
			Conditions: []model.Condition{{TargetFieldID: "x", Operator: model.OperatorIsEmpty, Action: model.ActionRequire}},
		}
		assert.False(t, Resolve(f, model.NewValueStore()).Required)
	})

	t.Run("resolution is deterministic", func(t *testing.T) {
		def := applicationForm()
		store := storeOf(map[string]model.Value{"email": model.Scalar("pilot@agency.rw")})
		assert.Equal(t, ResolveAll(def, store), ResolveAll(def, store))
	})

	t.Run("resolve all covers every field", func(t *testing.T) {
		all := ResolveAll(applicationForm(), model.NewValueStore())
		assert.Len(t, all, 5)
		assert.True(t, all.Visible("cv"))
		assert.False(t, all.Visible("ghost"))
	})
}
