package stablesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hoofbeat/stableops/apiframework"
	"github.com/hoofbeat/stableops/routineservice"
	"github.com/hoofbeat/stableops/stabletypes"
)

// HTTPRoutineService implements the routineservice.Service interface
// using HTTP calls to the API.
type HTTPRoutineService struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewHTTPRoutineService creates a new HTTP client that implements routineservice.Service.
func NewHTTPRoutineService(baseURL, token string, client *http.Client) routineservice.Service {
	if client == nil {
		client = http.DefaultClient
	}

	baseURL = strings.TrimSuffix(baseURL, "/")

	return &HTTPRoutineService{
		client:  client,
		baseURL: baseURL,
		token:   token,
	}
}

func (s *HTTPRoutineService) do(ctx context.Context, method, reqURL string, payload any, wantStatus int, out any) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return err
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return apiframework.HandleAPIError(resp)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateTemplate implements routineservice.Service.CreateTemplate.
func (s *HTTPRoutineService) CreateTemplate(ctx context.Context, template *stabletypes.RoutineTemplate) error {
	return s.do(ctx, http.MethodPost, s.baseURL+"/routines/templates", template, http.StatusCreated, template)
}

// GetTemplate implements routineservice.Service.GetTemplate.
func (s *HTTPRoutineService) GetTemplate(ctx context.Context, id string) (*stabletypes.RoutineTemplate, error) {
	reqURL := fmt.Sprintf("%s/routines/templates/%s", s.baseURL, url.PathEscape(id))

	var template stabletypes.RoutineTemplate
	if err := s.do(ctx, http.MethodGet, reqURL, nil, http.StatusOK, &template); err != nil {
		return nil, err
	}
	return &template, nil
}

// UpdateTemplate implements routineservice.Service.UpdateTemplate.
func (s *HTTPRoutineService) UpdateTemplate(ctx context.Context, template *stabletypes.RoutineTemplate) error {
	reqURL := fmt.Sprintf("%s/routines/templates/%s", s.baseURL, url.PathEscape(template.ID))
	return s.do(ctx, http.MethodPut, reqURL, template, http.StatusOK, template)
}

// DeleteTemplate implements routineservice.Service.DeleteTemplate.
func (s *HTTPRoutineService) DeleteTemplate(ctx context.Context, id string) error {
	reqURL := fmt.Sprintf("%s/routines/templates/%s", s.baseURL, url.PathEscape(id))
	return s.do(ctx, http.MethodDelete, reqURL, nil, http.StatusOK, nil)
}

// ListTemplates implements routineservice.Service.ListTemplates.
func (s *HTTPRoutineService) ListTemplates(ctx context.Context, stableID string, createdAtCursor *time.Time, limit int) ([]*stabletypes.RoutineTemplate, error) {
	u, err := url.Parse(s.baseURL + "/routines/templates")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("stableId", stableID)
	q.Set("limit", fmt.Sprintf("%d", limit))
	if createdAtCursor != nil {
		q.Set("cursor", createdAtCursor.Format(time.RFC3339Nano))
	}
	u.RawQuery = q.Encode()

	var templates []*stabletypes.RoutineTemplate
	if err := s.do(ctx, http.MethodGet, u.String(), nil, http.StatusOK, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

// ListTemplatesByOrganization implements routineservice.Service.ListTemplatesByOrganization.
func (s *HTTPRoutineService) ListTemplatesByOrganization(ctx context.Context, organizationID string, createdAtCursor *time.Time, limit int) ([]*stabletypes.RoutineTemplate, error) {
	u, err := url.Parse(s.baseURL + "/routines/templates")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("organizationId", organizationID)
	q.Set("limit", fmt.Sprintf("%d", limit))
	if createdAtCursor != nil {
		q.Set("cursor", createdAtCursor.Format(time.RFC3339Nano))
	}
	u.RawQuery = q.Encode()

	var templates []*stabletypes.RoutineTemplate
	if err := s.do(ctx, http.MethodGet, u.String(), nil, http.StatusOK, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

// Schedule implements routineservice.Service.Schedule.
func (s *HTTPRoutineService) Schedule(ctx context.Context, req *routineservice.ScheduleRequest) (*stabletypes.RoutineInstance, error) {
	var instance stabletypes.RoutineInstance
	if err := s.do(ctx, http.MethodPost, s.baseURL+"/routines/instances", req, http.StatusCreated, &instance); err != nil {
		return nil, err
	}
	return &instance, nil
}

// GetInstance implements routineservice.Service.GetInstance.
func (s *HTTPRoutineService) GetInstance(ctx context.Context, id string) (*stabletypes.RoutineInstance, error) {
	reqURL := fmt.Sprintf("%s/routines/instances/%s", s.baseURL, url.PathEscape(id))

	var instance stabletypes.RoutineInstance
	if err := s.do(ctx, http.MethodGet, reqURL, nil, http.StatusOK, &instance); err != nil {
		return nil, err
	}
	return &instance, nil
}

// ListInstances implements routineservice.Service.ListInstances.
func (s *HTTPRoutineService) ListInstances(ctx context.Context, stableID string, date *time.Time, limit int) ([]*stabletypes.RoutineInstance, error) {
	u, err := url.Parse(s.baseURL + "/routines/instances")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("stableId", stableID)
	q.Set("limit", fmt.Sprintf("%d", limit))
	if date != nil {
		q.Set("date", date.UTC().Format("2006-01-02"))
	}
	u.RawQuery = q.Encode()

	var instances []*stabletypes.RoutineInstance
	if err := s.do(ctx, http.MethodGet, u.String(), nil, http.StatusOK, &instances); err != nil {
		return nil, err
	}
	return instances, nil
}

// Start implements routineservice.Service.Start.
func (s *HTTPRoutineService) Start(ctx context.Context, id string) (*stabletypes.RoutineInstance, error) {
	reqURL := fmt.Sprintf("%s/routines/instances/%s/start", s.baseURL, url.PathEscape(id))

	var instance stabletypes.RoutineInstance
	if err := s.do(ctx, http.MethodPost, reqURL, nil, http.StatusOK, &instance); err != nil {
		return nil, err
	}
	return &instance, nil
}

// CompleteStep implements routineservice.Service.CompleteStep.
func (s *HTTPRoutineService) CompleteStep(ctx context.Context, instanceID, stepID string, body *stabletypes.StepCompletionBody) (*stabletypes.RoutineInstance, error) {
	reqURL := fmt.Sprintf("%s/routines/instances/%s/steps/%s/complete", s.baseURL, url.PathEscape(instanceID), url.PathEscape(stepID))

	var instance stabletypes.RoutineInstance
	if err := s.do(ctx, http.MethodPost, reqURL, body, http.StatusOK, &instance); err != nil {
		return nil, err
	}
	return &instance, nil
}

// SkipStep implements routineservice.Service.SkipStep.
func (s *HTTPRoutineService) SkipStep(ctx context.Context, instanceID, stepID, reason, skippedBy string) (*stabletypes.RoutineInstance, error) {
	reqURL := fmt.Sprintf("%s/routines/instances/%s/steps/%s/skip", s.baseURL, url.PathEscape(instanceID), url.PathEscape(stepID))
	body := &stabletypes.StepCompletionBody{
		Skipped:     true,
		SkipReason:  reason,
		CompletedBy: skippedBy,
	}

	var instance stabletypes.RoutineInstance
	if err := s.do(ctx, http.MethodPost, reqURL, body, http.StatusOK, &instance); err != nil {
		return nil, err
	}
	return &instance, nil
}

// Complete implements routineservice.Service.Complete.
func (s *HTTPRoutineService) Complete(ctx context.Context, id string) (*stabletypes.RoutineInstance, error) {
	reqURL := fmt.Sprintf("%s/routines/instances/%s/complete", s.baseURL, url.PathEscape(id))

	var instance stabletypes.RoutineInstance
	if err := s.do(ctx, http.MethodPost, reqURL, nil, http.StatusOK, &instance); err != nil {
		return nil, err
	}
	return &instance, nil
}

// Cancel implements routineservice.Service.Cancel.
func (s *HTTPRoutineService) Cancel(ctx context.Context, id, reason string) (*stabletypes.RoutineInstance, error) {
	reqURL := fmt.Sprintf("%s/routines/instances/%s/cancel", s.baseURL, url.PathEscape(id))
	body := map[string]string{"reason": reason}

	var instance stabletypes.RoutineInstance
	if err := s.do(ctx, http.MethodPost, reqURL, body, http.StatusOK, &instance); err != nil {
		return nil, err
	}
	return &instance, nil
}

// SweepMissed implements routineservice.Service.SweepMissed.
func (s *HTTPRoutineService) SweepMissed(ctx context.Context, grace time.Duration) (int, error) {
	u, err := url.Parse(s.baseURL + "/routines/sweep")
	if err != nil {
		return 0, err
	}
	q := u.Query()
	q.Set("grace", grace.String())
	u.RawQuery = q.Encode()

	var result struct {
		Missed int `json:"missed"`
	}
	if err := s.do(ctx, http.MethodPost, u.String(), nil, http.StatusOK, &result); err != nil {
		return 0, err
	}
	return result.Missed, nil
}
