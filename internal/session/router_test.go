package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/OpenNSW/formengine/internal/form/definition"
	"github.com/OpenNSW/formengine/internal/form/engine"
	"github.com/OpenNSW/formengine/internal/form/model"
	"github.com/OpenNSW/formengine/internal/uploads"
	"github.com/OpenNSW/formengine/internal/uploads/drivers"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type testServer struct {
	t         *testing.T
	engine    *gin.Engine
	submitter *MockSubmitter
	storage   *drivers.LocalFSDriver
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	forms := new(MockDefinitionSource)
	forms.On("Fetch", mock.Anything, "opportunity-application").Return(applicationForm(), nil)
	forms.On("Fetch", mock.Anything, "ghost").Return(nil, definition.ErrFormNotFound)

	submitter := new(MockSubmitter)
	m, err := NewManager(forms, submitter, 10)
	require.NoError(t, err)

	storage, err := drivers.NewLocalFSDriver(t.TempDir(), "/api/v1/uploads")
	require.NoError(t, err)

	r := gin.New()
	NewRouter(m, uploads.NewHTTPHandler(uploads.NewUploadService(storage, 1<<20))).Register(r.Group("/api/v1"))
	return &testServer{t: t, engine: r, submitter: submitter, storage: storage}
}

func (s *testServer) do(method, path, body string) (int, envelope) {
	s.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return s.serve(req)
}

func (s *testServer) upload(path, filename, content string) (int, envelope) {
	s.t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(s.t, err)
	_, err = part.Write([]byte(content))
	require.NoError(s.t, err)
	require.NoError(s.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.serve(req)
}

func (s *testServer) serve(req *http.Request) (int, envelope) {
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestRouter_FullSession(t *testing.T) {
	srv := newTestServer(t)

	code, env := srv.do(http.MethodPost, "/api/v1/forms/opportunity-application/sessions", "")
	require.Equal(t, http.StatusCreated, code)
	view := decode[engine.View](t, env.Data)
	base := "/api/v1/sessions/" + view.SessionID.String()

	assert.Equal(t, "opportunity-application", view.FormID)
	assert.Equal(t, 50, view.Progress)
	assert.False(t, view.CanAdvance)
	require.NotNil(t, view.Stage)
	assert.Equal(t, "applicant", view.Stage.ID)
	require.Len(t, view.Stage.Fields, 3)
	assert.True(t, view.Stage.Fields[2].Value.IsList())

	t.Run("next is gated by the current stage", func(t *testing.T) {
		code, env := srv.do(http.MethodPost, base+"/next", "")
		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
		step := decode[StepResponse](t, env.Error.Details)
		require.Len(t, step.Result.Errors, 1)
		assert.Equal(t, "Full Name is required", step.Result.Errors[0].Message)
		assert.Equal(t, 0, step.Session.Navigation.CurrentStageIndex)
	})

	t.Run("set values", func(t *testing.T) {
		code, env := srv.do(http.MethodPut, base+"/values/full_name", `{"value":"Aline Uwase"}`)
		require.Equal(t, http.StatusOK, code)
		assert.True(t, decode[engine.View](t, env.Data).CanAdvance)

		code, env = srv.do(http.MethodPut, base+"/values/languages", `{"value":["English","Kinyarwanda"]}`)
		require.Equal(t, http.StatusOK, code)
		v := decode[engine.View](t, env.Data)
		assert.Equal(t, []string{"English", "Kinyarwanda"}, v.Stage.Fields[2].Value.Items())
	})

	t.Run("rejected writes", func(t *testing.T) {
		code, _ := srv.do(http.MethodPut, base+"/values/nickname", `{"value":"x"}`)
		assert.Equal(t, http.StatusNotFound, code)
		code, _ = srv.do(http.MethodPut, base+"/values/intro", `{"value":"x"}`)
		assert.Equal(t, http.StatusBadRequest, code)
		code, _ = srv.do(http.MethodPut, base+"/values/full_name", `{"value":{"first":"Aline"}}`)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("next and previous keep values", func(t *testing.T) {
		code, env := srv.do(http.MethodPost, base+"/next", "")
		require.Equal(t, http.StatusOK, code)
		step := decode[StepResponse](t, env.Data)
		assert.Equal(t, 1, step.Session.Navigation.CurrentStageIndex)
		assert.Equal(t, []int{0}, step.Session.Navigation.CompletedStages)
		assert.Equal(t, 100, step.Session.Progress)

		code, env = srv.do(http.MethodPost, base+"/previous", "")
		require.Equal(t, http.StatusOK, code)
		step = decode[StepResponse](t, env.Data)
		assert.Equal(t, "Aline Uwase", step.Session.Stage.Fields[1].Value.Text())

		code, env = srv.do(http.MethodPost, base+"/previous", "")
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "CONFLICT", env.Error.Code)

		code, _ = srv.do(http.MethodPost, base+"/next", "")
		require.Equal(t, http.StatusOK, code)
	})

	var cvKey string
	t.Run("upload a file field", func(t *testing.T) {
		code, env := srv.upload(base+"/files/cv", "cv.pdf", "first draft")
		require.Equal(t, http.StatusCreated, code)
		resp := decode[FileResponse](t, env.Data)
		assert.Equal(t, resp.File.Key, resp.Session.Stage.Fields[0].Value.Text())
		first := resp.File.Key

		code, env = srv.upload(base+"/files/cv", "cv.pdf", "final")
		require.Equal(t, http.StatusCreated, code)
		cvKey = decode[FileResponse](t, env.Data).File.Key
		assert.NotEqual(t, first, cvKey)

		_, _, err := srv.storage.Get(t.Context(), first)
		assert.ErrorIs(t, err, drivers.ErrNotFound, "the replaced file is deleted")

		code, _ = srv.upload(base+"/files/full_name", "cv.pdf", "x")
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("a failed submission can be retried", func(t *testing.T) {
		srv.submitter.On("Submit", mock.Anything, mock.Anything).Return(model.Outcome{}, errors.New("connection refused")).Once()

		code, env := srv.do(http.MethodPost, base+"/submit", "")
		assert.Equal(t, http.StatusBadGateway, code)
		assert.Equal(t, "FORM_SUBMISSION_FAILED", env.Error.Code)

		code, env = srv.do(http.MethodGet, base, "")
		require.Equal(t, http.StatusOK, code)
		v := decode[engine.View](t, env.Data)
		assert.Equal(t, engine.StatusFilling, v.Navigation.Status)
		assert.Equal(t, cvKey, v.Stage.Fields[0].Value.Text())
	})

	t.Run("next on the final stage submits", func(t *testing.T) {
		srv.submitter.On("Submit", mock.Anything, model.Submission{
			FormID: "opportunity-application",
			FieldSubmissions: []model.FieldSubmission{
				{FieldID: "full_name", Value: "Aline Uwase"},
				{FieldID: "languages", Value: "English,Kinyarwanda"},
				{FieldID: "cv", Value: cvKey},
			},
		}).Return(model.Outcome{Success: true, Message: "received"}, nil).Once()

		code, env := srv.do(http.MethodPost, base+"/next", "")
		require.Equal(t, http.StatusOK, code)
		step := decode[StepResponse](t, env.Data)
		assert.True(t, step.Result.Submitted)
		assert.Equal(t, "received", step.Result.Outcome.Message)
		assert.Equal(t, engine.StatusSubmitted, step.Session.Navigation.Status)
		assert.Equal(t, 100, step.Session.Progress)
		srv.submitter.AssertExpectations(t)
	})

	t.Run("a submitted session is closed", func(t *testing.T) {
		code, env := srv.do(http.MethodPut, base+"/values/full_name", `{"value":"Someone Else"}`)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "SESSION_CLOSED", env.Error.Code)

		code, _ = srv.do(http.MethodPost, base+"/submit", "")
		assert.Equal(t, http.StatusConflict, code)
	})

	t.Run("abandon", func(t *testing.T) {
		code, _ := srv.do(http.MethodDelete, base, "")
		assert.Equal(t, http.StatusNoContent, code)
		code, _ = srv.do(http.MethodGet, base, "")
		assert.Equal(t, http.StatusNotFound, code)
	})
}

func TestRouter_Errors(t *testing.T) {
	srv := newTestServer(t)

	t.Run("unknown form", func(t *testing.T) {
		code, env := srv.do(http.MethodPost, "/api/v1/forms/ghost/sessions", "")
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "NOT_FOUND", env.Error.Code)
	})

	t.Run("malformed session id", func(t *testing.T) {
		code, _ := srv.do(http.MethodGet, "/api/v1/sessions/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, code)
		code, _ = srv.do(http.MethodDelete, "/api/v1/sessions/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("unknown session", func(t *testing.T) {
		code, _ := srv.do(http.MethodPost, "/api/v1/sessions/"+uuid.NewString()+"/next", "")
		assert.Equal(t, http.StatusNotFound, code)
	})
}
