// Package stablesdk provides HTTP clients for the stableops API. Each
// client implements the corresponding service interface, so callers,
// the careflow engine included, cannot tell a remote server from an
// in-process service.
package stablesdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hoofbeat/stableops/apiframework"
	"github.com/hoofbeat/stableops/dailynotesservice"
	"github.com/hoofbeat/stableops/horseservice"
	"github.com/hoofbeat/stableops/routineservice"
)

// Client is the main SDK client that provides access to all services
type Client struct {
	RoutineService    routineservice.Service
	HorseService      horseservice.Service
	DailyNotesService dailynotesservice.Service
}

// Config holds configuration for the SDK client
type Config struct {
	BaseURL string
	Token   string
}

func createClient(config Config, httpClient *http.Client) (*Client, error) {
	return &Client{
		RoutineService:    NewHTTPRoutineService(config.BaseURL, config.Token, httpClient),
		HorseService:      NewHTTPHorseService(config.BaseURL, config.Token, httpClient),
		DailyNotesService: NewHTTPDailyNotesService(config.BaseURL, config.Token, httpClient),
	}, nil
}

// NewClient builds a client after validating that the server speaks the
// same version as this SDK.
func NewClient(ctx context.Context, config Config, httpClient *http.Client) (*Client, error) {
	about, err := fetchServerVersion(ctx, config, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to validate server version: %w", err)
	}

	sdkVersion := apiframework.GetVersion()

	// Special case for development (when version is unknown)
	if about.Version == "unknown" || strings.Contains(about.Version, "dev") {
		return createClient(config, httpClient)
	}

	if sdkVersion != about.Version {
		return nil, fmt.Errorf(
			"version mismatch: server=%q, sdk=%q (must be identical)\n"+
				"Hint: Run 'go get github.com/hoofbeat/stableops@%s' to fix",
			about.Version,
			sdkVersion,
			about.Version,
		)
	}

	return createClient(config, httpClient)
}

func fetchServerVersion(ctx context.Context, config Config, httpClient *http.Client) (apiframework.AboutServer, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/version", nil)
	if err != nil {
		return apiframework.AboutServer{}, err
	}

	if config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+config.Token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return apiframework.AboutServer{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiframework.AboutServer{}, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var about apiframework.AboutServer
	if err := json.NewDecoder(resp.Body).Decode(&about); err != nil {
		return apiframework.AboutServer{}, err
	}
	return about, nil
}
