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

// TMDBClient queries The Movie Database search API for video entries.
type TMDBClient struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
}

// TMDBResult represents a single TMDB search match.
type TMDBResult struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	Popularity   float64 `json:"popularity"`
	VoteAverage  float64 `json:"vote_average"`
}

type tmdbResponse struct {
	Results []TMDBResult `json:"results"`
}

// NewTMDB creates a TMDB client.
func NewTMDB(cfg config.TMDB, opts ...CatalogOption) (*TMDBClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &TMDBClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(cfg.Language),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt.applyHTTP(&client.httpClient)
	}
	return client, nil
}

// SearchMovie searches TMDB movies for the supplied title.
func (c *TMDBClient) SearchMovie(ctx context.Context, query string) ([]TMDBResult, error) {
	return c.search(ctx, "/search/movie", query)
}

// SearchTV searches TMDB television for the supplied title.
func (c *TMDBClient) SearchTV(ctx context.Context, query string) ([]TMDBResult, error) {
	return c.search(ctx, "/search/tv", query)
}

func (c *TMDBClient) search(ctx context.Context, path, query string) ([]TMDBResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("tmdb: query must not be empty")
	}
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build tmdb request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tmdb request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tmdb search returned %d", resp.StatusCode)
	}
	var payload tmdbResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode tmdb response: %w", err)
	}
	return payload.Results, nil
}
