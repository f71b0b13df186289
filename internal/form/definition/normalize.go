package definition

import (
	"fmt"
	"sort"
	"strings"

	"github.com/OpenNSW/formengine/internal/form/model"
)

// ErrCodeMixedLayout is reported when a document declares stages and top-level fields at once.
const ErrCodeMixedLayout ErrorCode = "MIXED_LAYOUT"

// typeAliases maps spellings used by older form builders onto the canonical field types.
var typeAliases = map[string]model.FieldType{
	"checkbox":    model.FieldTypeCheckboxGroup,
	"tel":         model.FieldTypePhone,
	"statictext":  model.FieldTypeStaticText,
	"static_text": model.FieldTypeStaticText,
}

// Normalize turns an authoring document into a FormDefinition and checks it.
// All problems are collected; if there are any the definition is refused with Errors.
func Normalize(doc *Document) (*model.FormDefinition, error) {
	var errs Errors

	if doc == nil {
		errs.add(ErrCodeEmptyForm, "", "form definition is empty")
		return nil, errs
	}
	if strings.TrimSpace(doc.ID) == "" {
		errs.add(ErrCodeMissingFormID, "id", "form id is required")
	}

	stageDocs := doc.Stages
	if len(stageDocs) == 0 {
		// No grouping: the whole field list is one implicit stage.
		stageDocs = []StageDocument{{ID: "main", Title: doc.Title, Fields: doc.Fields}}
	} else if len(doc.Fields) > 0 {
		errs.add(ErrCodeMixedLayout, "fields", "top-level fields cannot be combined with stages")
	}

	def := &model.FormDefinition{
		ID:          strings.TrimSpace(doc.ID),
		Title:       doc.Title,
		Description: doc.Description,
		Stages:      make([]model.Stage, 0, len(stageDocs)),
	}

	stageOrder := make([]int, len(stageDocs))
	stageIDs := make(map[string]string)
	fieldPaths := make(map[string]string)
	totalFields := 0

	for i, sd := range stageDocs {
		path := fmt.Sprintf("stages[%d]", i)
		stage := model.Stage{
			ID:          strings.TrimSpace(sd.ID),
			Title:       sd.Title,
			Description: sd.Description,
			Order:       i,
		}
		if sd.Order != nil {
			stage.Order = *sd.Order
		}
		stageOrder[i] = stage.Order
		if stage.ID == "" {
			stage.ID = fmt.Sprintf("stage-%d", i+1)
		}
		if prev, dup := stageIDs[stage.ID]; dup {
			errs.add(ErrCodeDuplicateStageID, path, "stage id %q already used by %s", stage.ID, prev)
		} else {
			stageIDs[stage.ID] = path
		}

		fieldOrder := make([]int, len(sd.Fields))
		stage.Fields = make([]model.Field, 0, len(sd.Fields))
		for j, fd := range sd.Fields {
			fpath := fmt.Sprintf("%s.fields[%d]", path, j)
			field := normalizeField(fd, fpath, &errs)
			fieldOrder[j] = j
			if fd.Order != nil {
				fieldOrder[j] = *fd.Order
			}
			if field.ID != "" {
				if prev, dup := fieldPaths[field.ID]; dup {
					errs.add(ErrCodeDuplicateFieldID, fpath, "field id %q already declared at %s", field.ID, prev)
				} else {
					fieldPaths[field.ID] = fpath
				}
			}
			stage.Fields = append(stage.Fields, field)
			totalFields++
		}
		sortStable(stage.Fields, fieldOrder)
		def.Stages = append(def.Stages, stage)
	}
	sortStable(def.Stages, stageOrder)

	if totalFields == 0 {
		errs.add(ErrCodeEmptyForm, "", "form %q declares no fields", def.ID)
	}

	// Condition targets can point forwards, so they are checked once every id is known.
	for si := range def.Stages {
		for fi := range def.Stages[si].Fields {
			f := &def.Stages[si].Fields[fi]
			for ci, c := range f.Conditions {
				if c.TargetFieldID == "" {
					errs.add(ErrCodeDanglingConditionTarget, conditionPath(fieldPaths[f.ID], ci), "condition has no target field")
					continue
				}
				if _, ok := fieldPaths[c.TargetFieldID]; !ok {
					errs.add(ErrCodeDanglingConditionTarget, conditionPath(fieldPaths[f.ID], ci),
						"condition on field %q references unknown field %q", f.ID, c.TargetFieldID)
				}
			}
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return def, nil
}

func conditionPath(fieldPath string, i int) string {
	return fmt.Sprintf("%s.conditions[%d]", fieldPath, i)
}

func normalizeField(fd FieldDocument, path string, errs *Errors) model.Field {
	field := model.Field{
		ID:           strings.TrimSpace(fd.ID),
		Name:         strings.TrimSpace(fd.Name),
		Label:        fd.Label,
		Placeholder:  fd.Placeholder,
		Options:      fd.Options,
		BaseRequired: fd.Required,
	}
	if field.ID == "" {
		field.ID = field.Name
	}
	if field.Name == "" {
		field.Name = field.ID
	}
	if field.ID == "" {
		errs.add(ErrCodeMissingFieldID, path, "field needs an id or a name")
	}

	rawType := strings.ToLower(strings.TrimSpace(fd.Type))
	switch {
	case rawType == "":
		field.Type = model.FieldTypeText
	case typeAliases[rawType] != "":
		field.Type = typeAliases[rawType]
	default:
		field.Type = model.FieldType(rawType)
	}
	if !field.Type.Valid() {
		errs.add(ErrCodeUnknownFieldType, path, "unknown field type %q", fd.Type)
	}

	if field.Type.HasOptions() && len(field.Options) == 0 {
		errs.add(ErrCodeMissingOptions, path, "%s field %q needs at least one option", field.Type, field.ID)
	}
	if field.Type.IsMultiValued() {
		for k, o := range field.Options {
			if strings.Contains(o, model.MultiValueDelimiter) {
				errs.add(ErrCodeDelimiterInOption, fmt.Sprintf("%s.options[%d]", path, k),
					"option %q contains the multi-value delimiter %q", o, model.MultiValueDelimiter)
			}
		}
	}
	if !field.Type.AcceptsInput() {
		// Display-only fields are never required.
		field.BaseRequired = false
	}

	if fd.Validation != nil {
		v := &model.Validation{
			Min:     fd.Validation.Min,
			Max:     fd.Validation.Max,
			Pattern: fd.Validation.Pattern,
			Message: fd.Validation.Message,
		}
		if v.Min != nil && v.Max != nil && *v.Min > *v.Max {
			errs.add(ErrCodeInvalidRange, path+".validation", "min %v is greater than max %v", *v.Min, *v.Max)
		}
		if err := v.Compile(); err != nil {
			errs.add(ErrCodeInvalidPattern, path+".validation.pattern", "pattern %q does not compile: %v", v.Pattern, err)
		}
		field.Validation = v
	}

	if fd.Default != nil {
		def, err := model.ValueFrom(fd.Default)
		switch {
		case err != nil:
			errs.add(ErrCodeInvalidDefault, path+".default", "%v", err)
		case !field.Type.AcceptsInput():
			errs.add(ErrCodeInvalidDefault, path+".default", "%s fields hold no value", field.Type)
		case field.Type.IsMultiValued() && !def.IsList():
			def = model.List(def.Items()...)
			field.Default = &def
		case !field.Type.IsMultiValued() && def.IsList():
			errs.add(ErrCodeInvalidDefault, path+".default", "%s field %q cannot default to a list", field.Type, field.ID)
		default:
			field.Default = &def
		}
	}

	for i, cd := range fd.Conditions {
		cpath := conditionPath(path, i)
		c := model.Condition{
			TargetFieldID: strings.TrimSpace(cd.target()),
			Operator:      model.Operator(strings.ToLower(strings.TrimSpace(cd.Operator))),
			Action:        model.Action(strings.ToLower(strings.TrimSpace(cd.Action))),
		}
		if !c.Operator.Valid() {
			errs.add(ErrCodeUnknownOperator, cpath, "unknown operator %q", cd.Operator)
		}
		if !c.Action.Valid() {
			errs.add(ErrCodeUnknownAction, cpath, "unknown action %q", cd.Action)
		}
		if cd.Value != nil {
			v, err := model.ValueFrom(cd.Value)
			if err != nil || v.IsList() {
				errs.add(ErrCodeInvalidConditionValue, cpath, "condition value must be a single string")
			} else {
				c.Value = v.Text()
			}
		}
		field.Conditions = append(field.Conditions, c)
	}

	return field
}

// sortStable orders items by keys, keeping declaration order on ties.
func sortStable[T any](items []T, keys []int) {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })
	sorted := make([]T, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
}
