package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/OpenNSW/formengine/internal/api"
	"github.com/OpenNSW/formengine/internal/form/definition"
	"github.com/OpenNSW/formengine/internal/form/engine"
	"github.com/OpenNSW/formengine/internal/form/model"
	"github.com/OpenNSW/formengine/internal/uploads"
)

// SetValueRequest is the body of PUT /sessions/:sessionId/values/:fieldId.
// The value is a string, or a list of strings for checkbox groups.
type SetValueRequest struct {
	Value model.Value `json:"value"`
}

// StepResponse is returned by next, previous and submit.
type StepResponse struct {
	Result  engine.StepResult `json:"result"`
	Session engine.View       `json:"session"`
}

// FileResponse is returned after a file field upload.
type FileResponse struct {
	File    *uploads.FileMetadata `json:"file"`
	Session engine.View           `json:"session"`
}

type Router struct {
	manager *Manager
	files   *uploads.HTTPHandler
}

// NewRouter builds the session routes. files may be nil, in which case file fields can
// only be set to references obtained elsewhere.
func NewRouter(manager *Manager, files *uploads.HTTPHandler) *Router {
	return &Router{manager: manager, files: files}
}

// Register mounts the session routes on g.
func (r *Router) Register(g *gin.RouterGroup) {
	g.POST("/forms/:formId/sessions", r.HandleStart)

	s := g.Group("/sessions/:sessionId")
	s.GET("", r.withSession(r.HandleGet))
	s.DELETE("", r.HandleAbandon)
	s.PUT("/values/:fieldId", r.withSession(r.HandleSetValue))
	s.DELETE("/values/:fieldId", r.withSession(r.HandleClearValue))
	s.POST("/next", r.withSession(r.HandleNext))
	s.POST("/previous", r.withSession(r.HandlePrevious))
	s.POST("/submit", r.withSession(r.HandleSubmit))
	if r.files != nil {
		s.POST("/files/:fieldId", r.withSession(r.HandleUploadFile))
	}
}

type sessionHandler func(c *gin.Context, s *engine.Session)

func (r *Router) withSession(h sessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionID(c)
		if !ok {
			return
		}
		s, err := r.manager.Get(id)
		if err != nil {
			writeSessionError(c, err)
			return
		}
		h(c, s)
	}
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("sessionId"))
	if err != nil || id == uuid.Nil {
		api.WriteError(c, http.StatusBadRequest, api.CodeBadRequest, "sessionId is invalid")
		return uuid.Nil, false
	}
	return id, true
}

// HandleStart handles POST /forms/:formId/sessions
func (r *Router) HandleStart(c *gin.Context) {
	s, err := r.manager.Start(c.Request.Context(), c.Param("formId"))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	api.WriteJSON(c, http.StatusCreated, s.View())
}

// HandleGet handles GET /sessions/:sessionId
func (r *Router) HandleGet(c *gin.Context, s *engine.Session) {
	api.WriteJSON(c, http.StatusOK, s.View())
}

// HandleAbandon handles DELETE /sessions/:sessionId
func (r *Router) HandleAbandon(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if err := r.manager.Abandon(c.Request.Context(), id); err != nil {
		writeSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleSetValue handles PUT /sessions/:sessionId/values/:fieldId
func (r *Router) HandleSetValue(c *gin.Context, s *engine.Session) {
	var req SetValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.WriteError(c, http.StatusBadRequest, api.CodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.SetValue(c.Param("fieldId"), req.Value); err != nil {
		writeSessionError(c, err)
		return
	}
	api.WriteJSON(c, http.StatusOK, s.View())
}

// HandleClearValue handles DELETE /sessions/:sessionId/values/:fieldId
func (r *Router) HandleClearValue(c *gin.Context, s *engine.Session) {
	if err := s.ClearValue(c.Param("fieldId")); err != nil {
		writeSessionError(c, err)
		return
	}
	api.WriteJSON(c, http.StatusOK, s.View())
}

// HandleNext handles POST /sessions/:sessionId/next. On the final stage this submits.
func (r *Router) HandleNext(c *gin.Context, s *engine.Session) {
	result, err := s.Next(c.Request.Context())
	r.writeStep(c, s, result, err)
}

// HandlePrevious handles POST /sessions/:sessionId/previous
func (r *Router) HandlePrevious(c *gin.Context, s *engine.Session) {
	err := s.Previous()
	r.writeStep(c, s, engine.StepResult{}, err)
}

// HandleSubmit handles POST /sessions/:sessionId/submit
func (r *Router) HandleSubmit(c *gin.Context, s *engine.Session) {
	result, err := s.Submit(c.Request.Context())
	r.writeStep(c, s, result, err)
}

func (r *Router) writeStep(c *gin.Context, s *engine.Session, result engine.StepResult, err error) {
	if err != nil {
		writeSessionError(c, err)
		return
	}
	resp := StepResponse{Result: result, Session: s.View()}
	if !result.OK() {
		api.WriteError(c, http.StatusUnprocessableEntity, api.CodeValidationFailed, "the current stage has invalid fields", resp)
		return
	}
	api.WriteJSON(c, http.StatusOK, resp)
}

// HandleUploadFile handles POST /sessions/:sessionId/files/:fieldId. The stored key becomes
// the field's value; the file it replaces is deleted.
func (r *Router) HandleUploadFile(c *gin.Context, s *engine.Session) {
	fieldID := c.Param("fieldId")
	f, ok := s.Definition().FieldByID(fieldID)
	if !ok {
		writeSessionError(c, engine.ErrUnknownField)
		return
	}
	if f.Type != model.FieldTypeFile {
		api.WriteError(c, http.StatusBadRequest, api.CodeBadRequest, "field "+fieldID+" is not a file field")
		return
	}
	previous := s.Value(fieldID).Text()

	metadata, ok := r.files.ReceiveFile(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := s.SetValue(fieldID, model.Scalar(metadata.Key)); err != nil {
		if delErr := r.files.Service.Delete(ctx, metadata.Key); delErr != nil {
			slog.WarnContext(ctx, "failed to cleanup orphaned file", "key", metadata.Key, "error", delErr)
		}
		writeSessionError(c, err)
		return
	}
	if previous != "" && previous != metadata.Key {
		if err := r.files.Service.Delete(ctx, previous); err != nil {
			slog.WarnContext(ctx, "failed to delete replaced file", "key", previous, "error", err)
		}
	}
	api.WriteJSON(c, http.StatusCreated, FileResponse{File: metadata, Session: s.View()})
}

func writeSessionError(c *gin.Context, err error) {
	var subErr *engine.SubmissionError
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, definition.ErrFormNotFound), errors.Is(err, engine.ErrUnknownField):
		api.WriteError(c, http.StatusNotFound, api.CodeNotFound, err.Error())
	case errors.Is(err, engine.ErrReadOnlyField):
		api.WriteError(c, http.StatusBadRequest, api.CodeBadRequest, err.Error())
	case errors.Is(err, engine.ErrSubmissionInProgress):
		api.WriteError(c, http.StatusConflict, api.CodeSubmissionInProgress, err.Error())
	case errors.Is(err, engine.ErrSessionClosed):
		api.WriteError(c, http.StatusConflict, api.CodeSessionClosed, err.Error())
	case errors.Is(err, engine.ErrFirstStage), errors.Is(err, engine.ErrFinalStage), errors.Is(err, engine.ErrNotFinalStage):
		api.WriteError(c, http.StatusConflict, api.CodeConflict, err.Error())
	case errors.As(err, &subErr):
		slog.WarnContext(c.Request.Context(), "session submission failed", "path", c.FullPath(), "error", err)
		api.WriteError(c, http.StatusBadGateway, api.CodeFormSubmissionFailed, err.Error(), subErr.Outcome)
	default:
		slog.ErrorContext(c.Request.Context(), "session request failed", "path", c.FullPath(), "error", err)
		api.WriteError(c, http.StatusInternalServerError, api.CodeInternal, "internal server error")
	}
}
