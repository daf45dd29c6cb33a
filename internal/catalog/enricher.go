// Package catalog looks up candidate metadata in external catalogs.
// MusicBrainz is the primary music source with Discogs as fallback; TMDB
// covers video. All lookups are best-effort: failures degrade to an empty
// enrichment and never fail an import.
package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"curator/internal/logging"
)

// CatalogOption configures a catalog client.
type CatalogOption struct {
	httpClient *http.Client
}

// WithHTTPClient overrides the default HTTP client on a catalog client.
func WithHTTPClient(client *http.Client) CatalogOption {
	return CatalogOption{httpClient: client}
}

func (o CatalogOption) applyHTTP(target **http.Client) {
	if o.httpClient != nil {
		*target = o.httpClient
	}
}

// Enrichment carries catalog facts merged into classification calls.
type Enrichment struct {
	Source      string   `json:"source,omitempty"`
	Title       string   `json:"title,omitempty"`
	Artist      string   `json:"artist,omitempty"`
	Album       string   `json:"album,omitempty"`
	Year        string   `json:"year,omitempty"`
	Description string   `json:"description,omitempty"`
	Genres      []string `json:"genres,omitempty"`
}

// Empty reports whether the enrichment carries no catalog facts.
func (e Enrichment) Empty() bool {
	return e.Source == ""
}

// RecordingSearcher is the MusicBrainz surface used by the enricher.
type RecordingSearcher interface {
	SearchRecording(ctx context.Context, title, artist string) ([]MusicBrainzRecording, error)
}

// ReleaseSearcher is the Discogs surface used by the enricher.
type ReleaseSearcher interface {
	SearchRelease(ctx context.Context, query string) ([]DiscogsRelease, error)
}

// VideoSearcher is the TMDB surface used by the enricher.
type VideoSearcher interface {
	SearchMovie(ctx context.Context, query string) ([]TMDBResult, error)
	SearchTV(ctx context.Context, query string) ([]TMDBResult, error)
}

// Enricher routes a lookup to the right catalog for the library type.
type Enricher struct {
	music  RecordingSearcher
	vinyl  ReleaseSearcher
	video  VideoSearcher
	logger *slog.Logger
}

// NewEnricher builds an enricher. Any client may be nil; lookups against a
// missing client degrade to an empty enrichment.
func NewEnricher(music RecordingSearcher, vinyl ReleaseSearcher, video VideoSearcher, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Enricher{music: music, vinyl: vinyl, video: video, logger: logger}
}

// Enrich looks up catalog facts for a candidate title. libraryType is
// "music" or "video"; uploader scopes music searches to an artist.
func (e *Enricher) Enrich(ctx context.Context, libraryType, title, uploader string) Enrichment {
	title = strings.TrimSpace(title)
	if title == "" {
		return Enrichment{}
	}
	if strings.EqualFold(libraryType, "music") {
		return e.enrichMusic(ctx, title, uploader)
	}
	return e.enrichVideo(ctx, title)
}

func (e *Enricher) enrichMusic(ctx context.Context, title, artist string) Enrichment {
	if e.music != nil {
		recordings, err := e.music.SearchRecording(ctx, title, artist)
		if err != nil {
			e.logger.Warn("musicbrainz lookup failed", logging.Error(err), logging.String("title", title))
		} else if len(recordings) > 0 {
			return enrichmentFromRecording(recordings[0])
		}
	}
	if e.vinyl != nil {
		query := title
		if artist != "" {
			query = artist + " " + title
		}
		releases, err := e.vinyl.SearchRelease(ctx, query)
		if err != nil {
			e.logger.Warn("discogs lookup failed", logging.Error(err), logging.String("title", title))
		} else if len(releases) > 0 {
			return enrichmentFromRelease(releases[0])
		}
	}
	return Enrichment{}
}

func (e *Enricher) enrichVideo(ctx context.Context, title string) Enrichment {
	if e.video == nil {
		return Enrichment{}
	}
	movies, err := e.video.SearchMovie(ctx, title)
	if err != nil {
		e.logger.Warn("tmdb movie lookup failed", logging.Error(err), logging.String("title", title))
	}
	shows, err := e.video.SearchTV(ctx, title)
	if err != nil {
		e.logger.Warn("tmdb tv lookup failed", logging.Error(err), logging.String("title", title))
	}

	best := bestVideoResult(movies, shows)
	if best == nil {
		return Enrichment{}
	}
	name := best.Title
	if name == "" {
		name = best.Name
	}
	year := best.ReleaseDate
	if year == "" {
		year = best.FirstAirDate
	}
	if len(year) >= 4 {
		year = year[:4]
	}
	return Enrichment{
		Source:      "tmdb",
		Title:       name,
		Year:        year,
		Description: best.Overview,
	}
}

func bestVideoResult(movies, shows []TMDBResult) *TMDBResult {
	var best *TMDBResult
	for _, candidates := range [][]TMDBResult{movies, shows} {
		for i := range candidates {
			if best == nil || candidates[i].Popularity > best.Popularity {
				best = &candidates[i]
			}
		}
	}
	return best
}

func enrichmentFromRecording(recording MusicBrainzRecording) Enrichment {
	enrichment := Enrichment{
		Source: "musicbrainz",
		Title:  recording.Title,
	}
	if len(recording.ArtistCredit) > 0 {
		enrichment.Artist = recording.ArtistCredit[0].Name
	}
	if len(recording.Releases) > 0 {
		enrichment.Album = recording.Releases[0].Title
		if date := recording.Releases[0].Date; len(date) >= 4 {
			enrichment.Year = date[:4]
		}
	}
	for _, tag := range recording.Tags {
		if name := strings.TrimSpace(tag.Name); name != "" {
			enrichment.Genres = append(enrichment.Genres, name)
		}
	}
	return enrichment
}

func enrichmentFromRelease(release DiscogsRelease) Enrichment {
	enrichment := Enrichment{
		Source: "discogs",
		Title:  release.Title,
		Year:   release.Year,
	}
	// Discogs uses "Artist - Title" in release titles.
	if idx := strings.Index(release.Title, " - "); idx > 0 {
		enrichment.Artist = strings.TrimSpace(release.Title[:idx])
		enrichment.Album = strings.TrimSpace(release.Title[idx+3:])
	}
	enrichment.Genres = append(enrichment.Genres, release.Genres...)
	enrichment.Genres = append(enrichment.Genres, release.Styles...)
	return enrichment
}

// Describe renders the enrichment as prompt-friendly lines.
func (e Enrichment) Describe() string {
	if e.Empty() {
		return ""
	}
	var b strings.Builder
	write := func(key, value string) {
		if value != "" {
			b.WriteString(key)
			b.WriteString(": ")
			b.WriteString(value)
			b.WriteString("\n")
		}
	}
	write("catalog", e.Source)
	write("title", e.Title)
	write("artist", e.Artist)
	write("album", e.Album)
	write("year", e.Year)
	write("description", e.Description)
	if len(e.Genres) > 0 {
		write("genres", strings.Join(e.Genres, ", "))
	}
	return strings.TrimSpace(b.String())
}
