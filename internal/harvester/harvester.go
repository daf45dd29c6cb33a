// Package harvester talks to the external download service that resolves
// source URLs into playable artifacts. The service exposes probe, download,
// and search endpoints; every request carries the configured source tag so
// the service can attribute traffic.
package harvester

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"curator/internal/config"
	"curator/internal/services"
)

const sourceTagHeader = "X-Curator-Source"

// ProbeResult is the service's metadata snapshot for a source URL.
type ProbeResult struct {
	URL          string  `json:"url"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Platform     string  `json:"platform"`
	Uploader     string  `json:"uploader"`
	Duration     float64 `json:"duration"`
	ThumbnailURL string  `json:"thumbnail_url"`
	Formats      []struct {
		ID     string `json:"id"`
		Ext    string `json:"ext"`
		Height int    `json:"height"`
	} `json:"formats"`
}

// SearchResult is one hit from the service's search endpoint.
type SearchResult struct {
	URL      string  `json:"url"`
	Title    string  `json:"title"`
	Platform string  `json:"platform"`
	Uploader string  `json:"uploader"`
	Duration float64 `json:"duration"`
}

// Service defines the harvester operations used by the import pipeline.
type Service interface {
	Probe(ctx context.Context, sourceURL string) (*ProbeResult, error)
	Download(ctx context.Context, sourceURL, format, destDir string) (string, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// Client is the HTTP implementation of Service.
type Client struct {
	baseURL         string
	apiKey          string
	sourceTag       string
	httpClient      *http.Client
	downloadTimeout time.Duration
}

var _ Service = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a harvester client from configuration.
func New(cfg config.Harvester, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("harvester base url required")
	}
	requestTimeout := time.Duration(cfg.RequestTimeout) * time.Second
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	downloadTimeout := time.Duration(cfg.DownloadTimeout) * time.Second
	if downloadTimeout <= 0 {
		downloadTimeout = 30 * time.Minute
	}
	client := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		apiKey:          strings.TrimSpace(cfg.APIKey),
		sourceTag:       strings.TrimSpace(cfg.SourceTag),
		httpClient:      &http.Client{Timeout: requestTimeout},
		downloadTimeout: downloadTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Probe asks the service to resolve metadata for a source URL without
// downloading anything.
func (c *Client) Probe(ctx context.Context, sourceURL string) (*ProbeResult, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, services.Wrap(services.ErrValidation, "probe", "harvester", "source url required", nil)
	}
	endpoint, err := url.Parse(c.baseURL + "/api/probe")
	if err != nil {
		return nil, fmt.Errorf("parse harvester url: %w", err)
	}
	params := url.Values{}
	params.Set("url", sourceURL)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build probe request: %w", err)
	}
	c.decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "probe", "harvester", "probe request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, services.Wrap(services.ErrNotFound, "probe", "harvester",
			fmt.Sprintf("source not resolvable: %s", sourceURL), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrExternalService, "probe", "harvester",
			fmt.Sprintf("probe returned %d", resp.StatusCode), nil)
	}

	var payload ProbeResult
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrExternalService, "probe", "harvester", "decode probe response", err)
	}
	if payload.URL == "" {
		payload.URL = sourceURL
	}
	return &payload, nil
}

// Download streams the artifact for a source URL into destDir and returns
// the written path. The download timeout is fixed per request; exceeding it
// fails the download permanently.
func (c *Client) Download(ctx context.Context, sourceURL, format, destDir string) (string, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return "", services.Wrap(services.ErrValidation, "download", "harvester", "source url required", nil)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	body, err := json.Marshal(map[string]string{"url": sourceURL, "format": format})
	if err != nil {
		return "", fmt.Errorf("marshal download request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/download", strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.decorate(req)

	// The download client carries no global timeout; the request context
	// bounds the whole transfer instead.
	download := &http.Client{Transport: c.httpClient.Transport}
	resp, err := download.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
			return "", services.Wrap(services.ErrTimeout, "download", "harvester",
				fmt.Sprintf("download exceeded %s", c.downloadTimeout), err)
		}
		return "", services.Wrap(services.ErrExternalService, "download", "harvester", "download request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrExternalService, "download", "harvester",
			fmt.Sprintf("download returned %d", resp.StatusCode), nil)
	}

	name := fileNameFromResponse(resp, format)
	target := filepath.Join(destDir, name)
	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create artifact file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(target)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "download", "harvester",
				fmt.Sprintf("download exceeded %s", c.downloadTimeout), err)
		}
		return "", services.Wrap(services.ErrExternalService, "download", "harvester", "stream artifact", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("close artifact file: %w", err)
	}
	return target, nil
}

// Search queries the service's source search endpoint.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "search", "harvester", "query required", nil)
	}
	endpoint, err := url.Parse(c.baseURL + "/api/search")
	if err != nil {
		return nil, fmt.Errorf("parse harvester url: %w", err)
	}
	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	c.decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "search", "harvester", "search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrExternalService, "search", "harvester",
			fmt.Sprintf("search returned %d", resp.StatusCode), nil)
	}

	var payload struct {
		Results []SearchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrExternalService, "search", "harvester", "decode search response", err)
	}
	return payload.Results, nil
}

func (c *Client) decorate(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.sourceTag != "" {
		req.Header.Set(sourceTagHeader, c.sourceTag)
	}
}

// fileNameFromResponse derives a safe artifact filename from the response
// headers, falling back to a generic name with the requested extension.
func fileNameFromResponse(resp *http.Response, format string) string {
	if disposition := resp.Header.Get("Content-Disposition"); disposition != "" {
		if idx := strings.Index(disposition, "filename="); idx >= 0 {
			name := strings.Trim(disposition[idx+len("filename="):], `" `)
			name = filepath.Base(name)
			if name != "" && name != "." && name != string(filepath.Separator) {
				return name
			}
		}
	}
	ext := strings.TrimPrefix(strings.TrimSpace(format), ".")
	if ext == "" {
		ext = "bin"
	}
	return "artifact." + ext
}
