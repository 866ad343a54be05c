package stablesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hoofbeat/stableops/apiframework"
	"github.com/hoofbeat/stableops/horseservice"
	"github.com/hoofbeat/stableops/stabletypes"
)

// HTTPHorseService implements the horseservice.Service interface using
// HTTP calls to the API.
type HTTPHorseService struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewHTTPHorseService creates a new HTTP client that implements horseservice.Service.
func NewHTTPHorseService(baseURL, token string, client *http.Client) horseservice.Service {
	if client == nil {
		client = http.DefaultClient
	}

	baseURL = strings.TrimSuffix(baseURL, "/")

	return &HTTPHorseService{
		client:  client,
		baseURL: baseURL,
		token:   token,
	}
}

func (s *HTTPHorseService) do(ctx context.Context, method, reqURL string, payload any, wantStatus int, out any) error {
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

func (s *HTTPHorseService) listWith(ctx context.Context, query url.Values) ([]*stabletypes.Horse, error) {
	u, err := url.Parse(s.baseURL + "/horses")
	if err != nil {
		return nil, err
	}
	u.RawQuery = query.Encode()

	var horses []*stabletypes.Horse
	if err := s.do(ctx, http.MethodGet, u.String(), nil, http.StatusOK, &horses); err != nil {
		return nil, err
	}
	return horses, nil
}

// Create implements horseservice.Service.Create.
func (s *HTTPHorseService) Create(ctx context.Context, horse *stabletypes.Horse) error {
	return s.do(ctx, http.MethodPost, s.baseURL+"/horses", horse, http.StatusCreated, horse)
}

// Get implements horseservice.Service.Get.
func (s *HTTPHorseService) Get(ctx context.Context, id string) (*stabletypes.Horse, error) {
	reqURL := fmt.Sprintf("%s/horses/%s", s.baseURL, url.PathEscape(id))

	var horse stabletypes.Horse
	if err := s.do(ctx, http.MethodGet, reqURL, nil, http.StatusOK, &horse); err != nil {
		return nil, err
	}
	return &horse, nil
}

// Update implements horseservice.Service.Update.
func (s *HTTPHorseService) Update(ctx context.Context, horse *stabletypes.Horse) error {
	reqURL := fmt.Sprintf("%s/horses/%s", s.baseURL, url.PathEscape(horse.ID))
	return s.do(ctx, http.MethodPut, reqURL, horse, http.StatusOK, horse)
}

// Delete implements horseservice.Service.Delete.
func (s *HTTPHorseService) Delete(ctx context.Context, id string) error {
	reqURL := fmt.Sprintf("%s/horses/%s", s.baseURL, url.PathEscape(id))
	return s.do(ctx, http.MethodDelete, reqURL, nil, http.StatusOK, nil)
}

// ListForStable implements horseservice.Service.ListForStable.
func (s *HTTPHorseService) ListForStable(ctx context.Context, stableID string) ([]*stabletypes.Horse, error) {
	q := url.Values{}
	q.Set("stableId", stableID)
	return s.listWith(ctx, q)
}

// ListByIDs implements horseservice.Service.ListByIDs.
func (s *HTTPHorseService) ListByIDs(ctx context.Context, ids []string) ([]*stabletypes.Horse, error) {
	if len(ids) == 0 {
		return []*stabletypes.Horse{}, nil
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	return s.listWith(ctx, q)
}

// ListByGroups implements horseservice.Service.ListByGroups.
func (s *HTTPHorseService) ListByGroups(ctx context.Context, stableID string, groupIDs []string) ([]*stabletypes.Horse, error) {
	if len(groupIDs) == 0 {
		return []*stabletypes.Horse{}, nil
	}
	q := url.Values{}
	q.Set("stableId", stableID)
	q.Set("groupIds", strings.Join(groupIDs, ","))
	return s.listWith(ctx, q)
}

// CreateGroup implements horseservice.Service.CreateGroup.
func (s *HTTPHorseService) CreateGroup(ctx context.Context, group *stabletypes.HorseGroup) error {
	return s.do(ctx, http.MethodPost, s.baseURL+"/horse-groups", group, http.StatusCreated, group)
}

// GetGroup implements horseservice.Service.GetGroup.
func (s *HTTPHorseService) GetGroup(ctx context.Context, id string) (*stabletypes.HorseGroup, error) {
	reqURL := fmt.Sprintf("%s/horse-groups/%s", s.baseURL, url.PathEscape(id))

	var group stabletypes.HorseGroup
	if err := s.do(ctx, http.MethodGet, reqURL, nil, http.StatusOK, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// DeleteGroup implements horseservice.Service.DeleteGroup.
func (s *HTTPHorseService) DeleteGroup(ctx context.Context, id string) error {
	reqURL := fmt.Sprintf("%s/horse-groups/%s", s.baseURL, url.PathEscape(id))
	return s.do(ctx, http.MethodDelete, reqURL, nil, http.StatusOK, nil)
}

// ListGroups implements horseservice.Service.ListGroups.
func (s *HTTPHorseService) ListGroups(ctx context.Context, stableID string) ([]*stabletypes.HorseGroup, error) {
	u, err := url.Parse(s.baseURL + "/horse-groups")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("stableId", stableID)
	u.RawQuery = q.Encode()

	var groups []*stabletypes.HorseGroup
	if err := s.do(ctx, http.MethodGet, u.String(), nil, http.StatusOK, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}
