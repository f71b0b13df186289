// Package engine interprets form definitions: it resolves conditional visibility and
// requiredness, validates fields and stages, steps through stages and serializes the
// final submission. Everything except Session.Submit is pure and performs no I/O.
package engine

import "github.com/OpenNSW/formengine/internal/form/model"

// Evaluate reports whether cond holds against the current values.
// A target that has no value yet is treated as empty. Unknown operators evaluate to false;
// the definition loader rejects them before a session can start.
func Evaluate(cond model.Condition, store *model.ValueStore) bool {
	value := store.Value(cond.TargetFieldID)

	switch cond.Operator {
	case model.OperatorEquals:
		return value.Text() == cond.Value
	case model.OperatorNotEquals:
		return value.Text() != cond.Value
	case model.OperatorContains:
		return value.Contains(cond.Value)
	case model.OperatorNotContains:
		return !value.Contains(cond.Value)
	case model.OperatorIsEmpty:
		return value.IsEmpty()
	case model.OperatorIsNotEmpty:
		return !value.IsEmpty()
	default:
		return false
	}
}
