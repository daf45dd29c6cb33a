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

// MusicBrainzClient queries the MusicBrainz recording search API.
type MusicBrainzClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// MusicBrainzRecording is one recording hit.
type MusicBrainzRecording struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Length       int    `json:"length"`
	Score        int    `json:"score"`
	ArtistCredit []struct {
		Name string `json:"name"`
	} `json:"artist-credit"`
	Releases []struct {
		Title string `json:"title"`
		Date  string `json:"date"`
	} `json:"releases"`
	Tags []struct {
		Name string `json:"name"`
	} `json:"tags"`
}

type musicBrainzResponse struct {
	Recordings []MusicBrainzRecording `json:"recordings"`
}

// NewMusicBrainz creates a MusicBrainz client. The API requires a meaningful
// User-Agent on every request.
func NewMusicBrainz(cfg config.MusicBrainz, opts ...CatalogOption) (*MusicBrainzClient, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("musicbrainz base url required")
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = "curator/1.0"
	}
	client := &MusicBrainzClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt.applyHTTP(&client.httpClient)
	}
	return client, nil
}

// SearchRecording looks up recordings by title, optionally scoped to an artist.
func (c *MusicBrainzClient) SearchRecording(ctx context.Context, title, artist string) ([]MusicBrainzRecording, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("musicbrainz: title required")
	}
	query := fmt.Sprintf("recording:%q", title)
	if artist = strings.TrimSpace(artist); artist != "" {
		query += fmt.Sprintf(" AND artist:%q", artist)
	}

	endpoint, err := url.Parse(c.baseURL + "/ws/2/recording")
	if err != nil {
		return nil, fmt.Errorf("parse musicbrainz url: %w", err)
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("fmt", "json")
	params.Set("limit", "5")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build musicbrainz request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("musicbrainz request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("musicbrainz search returned %d", resp.StatusCode)
	}
	var payload musicBrainzResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode musicbrainz response: %w", err)
	}
	return payload.Recordings, nil
}
