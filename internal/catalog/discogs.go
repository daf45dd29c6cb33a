package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"curator/internal/config"
)

// DiscogsClient queries the Discogs database search API. It serves as the
// fallback music catalog when MusicBrainz yields nothing.
type DiscogsClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// DiscogsRelease is one database search hit.
type DiscogsRelease struct {
	ID     int64    `json:"id"`
	Title  string   `json:"title"`
	Year   string   `json:"year"`
	Genres []string `json:"genre"`
	Styles []string `json:"style"`
}

type discogsResponse struct {
	Results []DiscogsRelease `json:"results"`
}

// NewDiscogs creates a Discogs client.
func NewDiscogs(cfg config.Discogs, opts ...CatalogOption) (*DiscogsClient, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("discogs base url required")
	}
	client := &DiscogsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt.applyHTTP(&client.httpClient)
	}
	return client, nil
}

// SearchRelease looks up releases by free-text query.
func (c *DiscogsClient) SearchRelease(ctx context.Context, query string) ([]DiscogsRelease, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("discogs: query required")
	}
	endpoint, err := url.Parse(c.baseURL + "/database/search")
	if err != nil {
		return nil, fmt.Errorf("parse discogs url: %w", err)
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "release")
	params.Set("per_page", "5")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build discogs request: %w", err)
	}
	req.Header.Set("User-Agent", "curator/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Discogs token="+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discogs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discogs search returned %d", resp.StatusCode)
	}
	var payload discogsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode discogs response: %w", err)
	}
	return payload.Results, nil
}
