package form

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/OpenNSW/formengine/internal/form/definition"
	"github.com/OpenNSW/formengine/internal/form/engine"
	"github.com/OpenNSW/formengine/internal/form/model"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestIntake(t *testing.T) (*Intake, *Service) {
	t.Helper()
	svc, db := newTestService(t)
	_, err := svc.RegisterDocument(t.Context(), []byte(intakeDocument), definition.FormatJSON, "")
	require.NoError(t, err)
	return NewIntake(db, svc), svc
}

const chainedDocument = `{
  "id": "chained",
  "title": "Chained",
  "fields": [
    {"id": "mode", "label": "Mode", "type": "radio", "options": ["A", "B"], "required": true},
    {"id": "detail", "label": "Detail", "type": "text",
     "conditions": [{"targetFieldId": "mode", "operator": "equals", "value": "B", "action": "hide"}]},
    {"id": "followup", "label": "Followup", "type": "text", "required": true,
     "conditions": [{"targetFieldId": "detail", "operator": "is_empty", "action": "hide"}]}
  ]
}`

func fieldCodes(errs []model.FieldError) map[string]string {
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[e.FieldID] = e.Code
	}
	return out
}

func TestIntake_Receive(t *testing.T) {
	intake, _ := newTestIntake(t)
	ctx := t.Context()

	t.Run("accepts a valid submission and stores the canonical fields", func(t *testing.T) {
		record, err := intake.Receive(ctx, model.Submission{
			FormID: "public-intake",
			FieldSubmissions: []model.FieldSubmission{
				{FieldID: "regions", Value: "South,North"},
				{FieldID: "full_name", Value: "Aline Uwase"},
				{FieldID: "has_license", Value: "No"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "public-intake", record.FormKey)

		var stored []model.FieldSubmission
		require.NoError(t, json.Unmarshal(record.Fields, &stored))
		assert.Equal(t, []model.FieldSubmission{
			{FieldID: "full_name", Value: "Aline Uwase"},
			{FieldID: "has_license", Value: "No"},
			{FieldID: "regions", Value: "South,North"},
		}, stored)
	})

	t.Run("rejects a hidden field", func(t *testing.T) {
		_, err := intake.Receive(ctx, model.Submission{
			FormID: "public-intake",
			FieldSubmissions: []model.FieldSubmission{
				{FieldID: "full_name", Value: "Aline Uwase"},
				{FieldID: "has_license", Value: "No"},
				{FieldID: "license_number", Value: "AB123"},
			},
		})
		var rejected *RejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, map[string]string{"license_number": model.ErrCodeHiddenField}, fieldCodes(rejected.Errors))
	})

	t.Run("rejects missing required, unknown and invalid fields", func(t *testing.T) {
		_, err := intake.Receive(ctx, model.Submission{
			FormID: "public-intake",
			FieldSubmissions: []model.FieldSubmission{
				{FieldID: "has_license", Value: "Maybe"},
				{FieldID: "regions", Value: "North,West"},
				{FieldID: "favourite_colour", Value: "blue"},
			},
		})
		var rejected *RejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, map[string]string{
			"favourite_colour": model.ErrCodeUnknownField,
			"full_name":        model.ErrCodeRequired,
			"has_license":      model.ErrCodeInvalidOption,
			"license_number":   model.ErrCodeRequired,
			"regions":          model.ErrCodeInvalidOption,
		}, fieldCodes(rejected.Errors))
	})

	t.Run("rejects duplicate fields", func(t *testing.T) {
		_, err := intake.Receive(ctx, model.Submission{
			FormID: "public-intake",
			FieldSubmissions: []model.FieldSubmission{
				{FieldID: "full_name", Value: "A"},
				{FieldID: "full_name", Value: "B"},
				{FieldID: "has_license", Value: "No"},
			},
		})
		var rejected *RejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, model.ErrCodeInvalidFormat, rejected.Errors[0].Code)
	})

	t.Run("unknown form", func(t *testing.T) {
		_, err := intake.Receive(ctx, model.Submission{FormID: "ghost"})
		assert.ErrorIs(t, err, definition.ErrFormNotFound)
	})

	t.Run("list", func(t *testing.T) {
		records, total, err := intake.List(ctx, "public-intake", 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, records, 1)
	})
}

func TestIntake_SessionSubmitsInProcess(t *testing.T) {
	intake, svc := newTestIntake(t)
	ctx := t.Context()

	def, err := svc.Fetch(ctx, "public-intake")
	require.NoError(t, err)

	session := engine.NewSession(def, intake.Submitter())
	require.NoError(t, session.SetValue("full_name", model.Scalar("Aline Uwase")))
	require.NoError(t, session.SetValue("has_license", model.Scalar("Yes")))
	require.NoError(t, session.SetValue("license_number", model.Scalar("AB123")))
	require.NoError(t, session.SetValue("has_license", model.Scalar("No")))

	result, err := session.Next(ctx)
	require.NoError(t, err)
	require.True(t, result.Submitted)
	assert.Contains(t, result.Outcome.Message, "received")

	records, _, err := intake.List(ctx, "public-intake", 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	var stored []model.FieldSubmission
	require.NoError(t, json.Unmarshal(records[0].Fields, &stored))
	for _, fs := range stored {
		assert.NotEqual(t, "license_number", fs.FieldID)
	}
}

func TestIntake_SubmitterReportsRejection(t *testing.T) {
	intake, _ := newTestIntake(t)

	outcome, err := intake.Submitter().Submit(t.Context(), model.Submission{FormID: "public-intake"})
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Message, "rejected")

	_, err = intake.Submitter().Submit(t.Context(), model.Submission{FormID: "ghost"})
	assert.ErrorIs(t, err, definition.ErrFormNotFound)
}

func TestIntake_RulesReadingHiddenFields(t *testing.T) {
	intake, svc := newTestIntake(t)
	ctx := t.Context()
	_, err := svc.RegisterDocument(ctx, []byte(chainedDocument), definition.FormatJSON, "")
	require.NoError(t, err)

	t.Run("session keeps a hidden value that other rules still read", func(t *testing.T) {
		def, err := svc.Fetch(ctx, "chained")
		require.NoError(t, err)

		session := engine.NewSession(def, intake.Submitter())
		require.NoError(t, session.SetValue("mode", model.Scalar("A")))
		require.NoError(t, session.SetValue("detail", model.Scalar("x")))
		require.NoError(t, session.SetValue("followup", model.Scalar("y")))
		require.NoError(t, session.SetValue("mode", model.Scalar("B")))

		result, err := session.Next(ctx)
		require.NoError(t, err)
		require.True(t, result.Submitted, "outcome: %+v", result.Outcome)

		records, _, err := intake.List(ctx, "chained", 0, 10)
		require.NoError(t, err)
		require.Len(t, records, 1)
		var stored []model.FieldSubmission
		require.NoError(t, json.Unmarshal(records[0].Fields, &stored))
		assert.Equal(t, []model.FieldSubmission{
			{FieldID: "mode", Value: "B"},
			{FieldID: "followup", Value: "y"},
		}, stored)
	})

	t.Run("a dependent field may be absent when its target was left off", func(t *testing.T) {
		_, err := intake.Receive(ctx, model.Submission{
			FormID:           "chained",
			FieldSubmissions: []model.FieldSubmission{{FieldID: "mode", Value: "B"}},
		})
		assert.NoError(t, err)
	})

	t.Run("rules are enforced when the target is on the payload", func(t *testing.T) {
		_, err := intake.Receive(ctx, model.Submission{
			FormID: "chained",
			FieldSubmissions: []model.FieldSubmission{
				{FieldID: "mode", Value: "A"},
				{FieldID: "detail", Value: ""},
				{FieldID: "followup", Value: "y"},
			},
		})
		var rejected *RejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, map[string]string{"followup": model.ErrCodeHiddenField}, fieldCodes(rejected.Errors))

		_, err = intake.Receive(ctx, model.Submission{
			FormID: "chained",
			FieldSubmissions: []model.FieldSubmission{
				{FieldID: "mode", Value: "A"},
				{FieldID: "detail", Value: "x"},
			},
		})
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, map[string]string{"followup": model.ErrCodeRequired}, fieldCodes(rejected.Errors))
	})
}

func TestIntake_AcceptsRemoteForms(t *testing.T) {
	db := newTestDB(t)
	remote := new(MockDefinitionSource)
	svc, err := NewService(db, remote)
	require.NoError(t, err)
	require.NoError(t, svc.Migrate(t.Context()))

	def, err := definition.DecodeJSON([]byte(intakeDocument))
	require.NoError(t, err)
	remote.On("Fetch", mock.Anything, "public-intake").Return(def, nil).Once()

	intake := NewIntake(db, svc)
	fetched, err := svc.Fetch(t.Context(), "public-intake")
	require.NoError(t, err)

	session := engine.NewSession(fetched, intake.Submitter())
	require.NoError(t, session.SetValue("full_name", model.Scalar("Aline Uwase")))
	require.NoError(t, session.SetValue("has_license", model.Scalar("No")))

	result, err := session.Next(t.Context())
	require.NoError(t, err)
	assert.True(t, result.Submitted, "outcome: %+v", result.Outcome)

	records, total, err := intake.List(t.Context(), "public-intake", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.NotEqual(t, uuid.Nil, records[0].FormRecordID)
	remote.AssertExpectations(t)
}
