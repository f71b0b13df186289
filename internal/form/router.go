package form

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/OpenNSW/formengine/internal/api"
	"github.com/OpenNSW/formengine/internal/form/definition"
	"github.com/OpenNSW/formengine/internal/form/model"
)

const maxDefinitionSize = 1 << 20

type Router struct {
	forms  *Service
	intake *Intake
}

func NewRouter(forms *Service, intake *Intake) *Router {
	return &Router{forms: forms, intake: intake}
}

// Register mounts the form registry and intake routes on g.
func (r *Router) Register(g *gin.RouterGroup) {
	g.GET("/forms", r.HandleListForms)
	g.POST("/forms", r.HandleRegisterForm)
	g.GET("/forms/:formId", r.HandleGetForm)
	g.DELETE("/forms/:formId", r.HandleDeactivateForm)
	g.POST("/forms/:formId/submissions", r.HandleSubmit)
	g.GET("/forms/:formId/submissions", r.HandleListSubmissions)
}

// HandleListForms handles GET /forms
// Optional Query Filters: offset, limit
func (r *Router) HandleListForms(c *gin.Context) {
	offset, limit, err := api.PaginationFromQuery(c)
	if err != nil {
		api.WriteError(c, http.StatusBadRequest, api.CodeBadRequest, err.Error())
		return
	}
	items, total, err := r.forms.List(c.Request.Context(), offset, limit)
	if err != nil {
		writeFormError(c, err)
		return
	}
	api.WriteJSON(c, http.StatusOK, api.ListResponse[model.FormSummary]{TotalCount: total, Items: items, Offset: offset, Limit: limit})
}

// HandleRegisterForm handles POST /forms. The body is a JSON or YAML definition document,
// picked by Content-Type. An optional version query parameter tags the stored definition.
func (r *Router) HandleRegisterForm(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDefinitionSize))
	if err != nil {
		api.WriteError(c, http.StatusBadRequest, api.CodeBadRequest, "failed to read request body")
		return
	}

	format := definition.FormatJSON
	if strings.Contains(c.ContentType(), "yaml") {
		format = definition.FormatYAML
	}

	record, err := r.forms.RegisterDocument(c.Request.Context(), data, format, c.Query("version"))
	if err != nil {
		writeFormError(c, err)
		return
	}
	api.WriteJSON(c, http.StatusCreated, model.FormSummary{
		ID:          record.ID,
		FormID:      record.Key,
		Name:        record.Name,
		Description: record.Description,
		Version:     record.Version,
		Active:      record.Active,
	})
}

// HandleGetForm handles GET /forms/:formId
func (r *Router) HandleGetForm(c *gin.Context) {
	resp, err := r.forms.Get(c.Request.Context(), c.Param("formId"))
	if err != nil {
		writeFormError(c, err)
		return
	}
	api.WriteJSON(c, http.StatusOK, resp)
}

// HandleDeactivateForm handles DELETE /forms/:formId
func (r *Router) HandleDeactivateForm(c *gin.Context) {
	if err := r.forms.Deactivate(c.Request.Context(), c.Param("formId")); err != nil {
		writeFormError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleSubmit handles POST /forms/:formId/submissions
func (r *Router) HandleSubmit(c *gin.Context) {
	var submission model.Submission
	if err := c.ShouldBindJSON(&submission); err != nil {
		api.WriteError(c, http.StatusBadRequest, api.CodeBadRequest, "invalid submission: "+err.Error())
		return
	}
	formID := c.Param("formId")
	if submission.FormID != "" && submission.FormID != formID {
		api.WriteError(c, http.StatusBadRequest, api.CodeBadRequest, "formId in body does not match path")
		return
	}
	submission.FormID = formID

	record, err := r.intake.Receive(c.Request.Context(), submission)
	if err != nil {
		writeFormError(c, err)
		return
	}
	api.WriteJSON(c, http.StatusCreated, record)
}

// HandleListSubmissions handles GET /forms/:formId/submissions
// Optional Query Filters: offset, limit
func (r *Router) HandleListSubmissions(c *gin.Context) {
	offset, limit, err := api.PaginationFromQuery(c)
	if err != nil {
		api.WriteError(c, http.StatusBadRequest, api.CodeBadRequest, err.Error())
		return
	}
	records, total, err := r.intake.List(c.Request.Context(), c.Param("formId"), offset, limit)
	if err != nil {
		writeFormError(c, err)
		return
	}
	api.WriteJSON(c, http.StatusOK, api.ListResponse[model.SubmissionRecord]{TotalCount: total, Items: records, Offset: offset, Limit: limit})
}

func writeFormError(c *gin.Context, err error) {
	var defErrs definition.Errors
	var rejected *RejectedError
	switch {
	case errors.Is(err, definition.ErrFormNotFound):
		api.WriteError(c, http.StatusNotFound, api.CodeNotFound, err.Error())
	case errors.As(err, &defErrs):
		api.WriteError(c, http.StatusUnprocessableEntity, api.CodeInvalidDefinition, err.Error(), defErrs)
	case errors.As(err, &rejected):
		api.WriteError(c, http.StatusUnprocessableEntity, api.CodeValidationFailed, rejected.Error(), rejected.Errors)
	default:
		slog.ErrorContext(c.Request.Context(), "form request failed", "path", c.FullPath(), "error", err)
		api.WriteError(c, http.StatusInternalServerError, api.CodeInternal, "internal server error")
	}
}
