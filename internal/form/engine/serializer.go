package engine

import (
	"strings"

	"github.com/OpenNSW/formengine/internal/form/model"
)

// Serialize projects the store into the wire payload. Only fields resolved visible are emitted,
// in stage order then field order. Lists are joined with model.MultiValueDelimiter.
// Hidden fields keep their values in the store; they are just left off the payload.
func Serialize(def *model.FormDefinition, store *model.ValueStore, resolutions Resolutions) model.Submission {
	sub := model.Submission{
		FormID:           def.ID,
		FieldSubmissions: make([]model.FieldSubmission, 0),
	}
	for _, f := range def.Fields() {
		if !f.Type.AcceptsInput() || !resolutions.Visible(f.ID) {
			continue
		}
		sub.FieldSubmissions = append(sub.FieldSubmissions, model.FieldSubmission{
			FieldID: f.ID,
			Value:   store.Value(f.ID).Text(),
		})
	}
	return sub
}

// ParseMultiValue splits a serialized list back into its items.
func ParseMultiValue(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, model.MultiValueDelimiter)
}
