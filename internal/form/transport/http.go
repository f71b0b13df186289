// Package transport connects the form engine to its request/response boundary:
// fetching definitions and forwarding finished submissions.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/OpenNSW/formengine/internal/api"
	"github.com/OpenNSW/formengine/internal/form/definition"
	"github.com/OpenNSW/formengine/internal/form/model"
)

// FormsAPIPath is where a form service exposes its definitions.
const FormsAPIPath = "/api/v1/forms"

const defaultTimeout = 30 * time.Second

// DefinitionSource is the read-only form-definition ingress.
type DefinitionSource interface {
	Fetch(ctx context.Context, formID string) (*model.FormDefinition, error)
}

// HTTPSource fetches definitions from another form service.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// Fetch downloads the definition of formID and runs it through the definition loader,
// so a remote definition is held to the same checks as a local file.
func (s *HTTPSource) Fetch(ctx context.Context, formID string) (*model.FormDefinition, error) {
	if formID == "" {
		return nil, fmt.Errorf("%w: empty form id", definition.ErrFormNotFound)
	}
	endpoint := s.baseURL + FormsAPIPath + "/" + url.PathEscape(formID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch form definition: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", definition.ErrFormNotFound, formID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	return definition.DecodeJSON(extractDefinition(body))
}

// extractDefinition unwraps {"data": {"definition": ...}} or {"data": ...} envelopes.
// Anything else is treated as a bare definition document.
func extractDefinition(body []byte) []byte {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Data) == 0 {
		return body
	}
	var wrapped struct {
		Definition json.RawMessage `json:"definition"`
	}
	if err := json.Unmarshal(envelope.Data, &wrapped); err == nil && len(wrapped.Definition) > 0 {
		return wrapped.Definition
	}
	return envelope.Data
}

// HTTPSubmitter forwards submissions as JSON to a fixed URL.
type HTTPSubmitter struct {
	url    string
	client *http.Client
}

func NewHTTPSubmitter(url string) *HTTPSubmitter {
	return &HTTPSubmitter{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
	}
}

// Submit POSTs the submission. Transport failures and non-2xx statuses are errors;
// a 2xx body may still report {"success": false}, which becomes an unsuccessful outcome.
func (s *HTTPSubmitter) Submit(ctx context.Context, submission model.Submission) (model.Outcome, error) {
	jsonData, err := json.Marshal(submission)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("failed to marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(jsonData))
	if err != nil {
		return model.Outcome{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("failed to send POST request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.Outcome{}, fmt.Errorf("submission failed with status %d: %s", resp.StatusCode, string(body))
	}

	outcome := parseOutcome(body)
	slog.Info("form submission forwarded", "url", s.url, "formId", submission.FormID, "status", resp.StatusCode, "success", outcome.Success)
	return outcome, nil
}

func parseOutcome(body []byte) model.Outcome {
	if len(bytes.TrimSpace(body)) == 0 {
		return model.Outcome{Success: true}
	}
	var reply struct {
		Success *bool         `json:"success"`
		Message string        `json:"message"`
		Error   *api.ApiError `json:"error"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		slog.Warn("failed to parse submission response as JSON", "error", err)
		return model.Outcome{Success: true, Message: string(body)}
	}
	outcome := model.Outcome{Success: reply.Success == nil || *reply.Success, Message: reply.Message}
	if outcome.Message == "" && reply.Error != nil {
		outcome.Message = reply.Error.Message
	}
	return outcome
}
