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
	"github.com/hoofbeat/stableops/dailynotesservice"
	"github.com/hoofbeat/stableops/stabletypes"
)

// HTTPDailyNotesService implements the dailynotesservice.Service
// interface using HTTP calls to the API.
type HTTPDailyNotesService struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewHTTPDailyNotesService creates a new HTTP client that implements dailynotesservice.Service.
func NewHTTPDailyNotesService(baseURL, token string, client *http.Client) dailynotesservice.Service {
	if client == nil {
		client = http.DefaultClient
	}

	baseURL = strings.TrimSuffix(baseURL, "/")

	return &HTTPDailyNotesService{
		client:  client,
		baseURL: baseURL,
		token:   token,
	}
}

// Set implements dailynotesservice.Service.Set.
func (s *HTTPDailyNotesService) Set(ctx context.Context, notes *stabletypes.DailyNotes) error {
	reqURL := fmt.Sprintf("%s/daily-notes/%s/%s", s.baseURL, url.PathEscape(notes.StableID), url.PathEscape(notes.Date))

	body, err := json.Marshal(notes)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, reqURL, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiframework.HandleAPIError(resp)
	}

	return json.NewDecoder(resp.Body).Decode(notes)
}

// Get implements dailynotesservice.Service.Get.
func (s *HTTPDailyNotesService) Get(ctx context.Context, stableID, date string) (*stabletypes.DailyNotes, error) {
	reqURL := fmt.Sprintf("%s/daily-notes/%s/%s", s.baseURL, url.PathEscape(stableID), url.PathEscape(date))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiframework.HandleAPIError(resp)
	}

	var notes stabletypes.DailyNotes
	if err := json.NewDecoder(resp.Body).Decode(&notes); err != nil {
		return nil, err
	}
	return &notes, nil
}
