package engine

import "github.com/OpenNSW/formengine/internal/form/model"

// Resolution is the state of a field after applying all of its conditions.
type Resolution struct {
	Visible  bool `json:"visible"`
	Required bool `json:"required"`
}

// Resolutions maps field id to its resolution.
type Resolutions map[string]Resolution

// Visible reports whether the field resolved to visible. Unknown ids are not visible.
func (r Resolutions) Visible(fieldID string) bool {
	res, ok := r[fieldID]
	return ok && res.Visible
}

// Resolve applies the field's conditions in declaration order. For each condition that holds,
// its action overwrites the corresponding axis, so the last applicable condition wins per axis.
func Resolve(field *model.Field, store *model.ValueStore) Resolution {
	res := Resolution{Visible: true, Required: field.BaseRequired}
	for _, cond := range field.Conditions {
		if !Evaluate(cond, store) {
			continue
		}
		switch cond.Action {
		case model.ActionShow:
			res.Visible = true
		case model.ActionHide:
			res.Visible = false
		case model.ActionRequire:
			res.Required = true
		case model.ActionMakeOptional:
			res.Required = false
		}
	}
	if !field.Type.AcceptsInput() {
		res.Required = false
	}
	return res
}

// ResolveAll re-derives every field of the form from the current values.
// There is no dependency tracking: forms hold tens of fields, so all of them are recomputed.
func ResolveAll(def *model.FormDefinition, store *model.ValueStore) Resolutions {
	out := make(Resolutions)
	for _, f := range def.Fields() {
		out[f.ID] = Resolve(f, store)
	}
	return out
}
