package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"curator/internal/catalog"
	"curator/internal/config"
)

func TestMusicBrainzSearchRecording(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/2/recording" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected user agent header")
		}
		if r.URL.Query().Get("fmt") != "json" {
			t.Errorf("expected fmt=json, got %q", r.URL.Query().Get("fmt"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"recordings": []map[string]any{
				{
					"id":            "mbid-1",
					"title":         "Giant Steps",
					"artist-credit": []map[string]any{{"name": "John Coltrane"}},
					"releases":      []map[string]any{{"title": "Giant Steps", "date": "1960-02-01"}},
					"tags":          []map[string]any{{"name": "jazz"}},
				},
			},
		})
	}))
	t.Cleanup(server.Close)

	client, err := catalog.NewMusicBrainz(config.MusicBrainz{BaseURL: server.URL, UserAgent: "curator-test/1.0"})
	if err != nil {
		t.Fatalf("NewMusicBrainz failed: %v", err)
	}
	recordings, err := client.SearchRecording(context.Background(), "Giant Steps", "John Coltrane")
	if err != nil {
		t.Fatalf("SearchRecording failed: %v", err)
	}
	if len(recordings) != 1 || recordings[0].Title != "Giant Steps" {
		t.Fatalf("unexpected recordings: %#v", recordings)
	}
}

func TestDiscogsSearchRelease(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/database/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Discogs token=secret" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"id": 1, "title": "Miles Davis - Kind Of Blue", "year": "1959", "genre": []string{"Jazz"}},
			},
		})
	}))
	t.Cleanup(server.Close)

	client, err := catalog.NewDiscogs(config.Discogs{BaseURL: server.URL, Token: "secret"})
	if err != nil {
		t.Fatalf("NewDiscogs failed: %v", err)
	}
	releases, err := client.SearchRelease(context.Background(), "kind of blue")
	if err != nil {
		t.Fatalf("SearchRelease failed: %v", err)
	}
	if len(releases) != 1 || releases[0].Year != "1959" {
		t.Fatalf("unexpected releases: %#v", releases)
	}
}

func TestTMDBSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "key" {
			t.Errorf("expected api key param, got %q", r.URL.Query().Get("api_key"))
		}
		switch r.URL.Path {
		case "/search/movie":
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{{"id": 10, "title": "Heat", "popularity": 40.0, "release_date": "1995-12-15"}},
			})
		case "/search/tv":
			json.NewEncoder(w).Encode(map[string]any{"results": []map[string]any{}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	t.Cleanup(server.Close)

	client, err := catalog.NewTMDB(config.TMDB{APIKey: "key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewTMDB failed: %v", err)
	}
	movies, err := client.SearchMovie(context.Background(), "Heat")
	if err != nil {
		t.Fatalf("SearchMovie failed: %v", err)
	}
	if len(movies) != 1 || movies[0].Title != "Heat" {
		t.Fatalf("unexpected movies: %#v", movies)
	}
}

type fakeMusic struct {
	recordings []catalog.MusicBrainzRecording
	err        error
}

func (f *fakeMusic) SearchRecording(context.Context, string, string) ([]catalog.MusicBrainzRecording, error) {
	return f.recordings, f.err
}

type fakeVinyl struct {
	releases []catalog.DiscogsRelease
	err      error
	calls    int
}

func (f *fakeVinyl) SearchRelease(context.Context, string) ([]catalog.DiscogsRelease, error) {
	f.calls++
	return f.releases, f.err
}

type fakeVideo struct {
	movies []catalog.TMDBResult
	shows  []catalog.TMDBResult
}

func (f *fakeVideo) SearchMovie(context.Context, string) ([]catalog.TMDBResult, error) {
	return f.movies, nil
}

func (f *fakeVideo) SearchTV(context.Context, string) ([]catalog.TMDBResult, error) {
	return f.shows, nil
}

func TestEnricherPrefersMusicBrainz(t *testing.T) {
	music := &fakeMusic{recordings: []catalog.MusicBrainzRecording{{
		ID:    "mbid-1",
		Title: "So What",
		ArtistCredit: []struct {
			Name string `json:"name"`
		}{{Name: "Miles Davis"}},
	}}}
	vinyl := &fakeVinyl{}
	enricher := catalog.NewEnricher(music, vinyl, nil, nil)

	enrichment := enricher.Enrich(context.Background(), "music", "So What", "Miles Davis")
	if enrichment.Source != "musicbrainz" || enrichment.Artist != "Miles Davis" {
		t.Fatalf("unexpected enrichment: %#v", enrichment)
	}
	if vinyl.calls != 0 {
		t.Fatal("discogs should not be queried when musicbrainz matches")
	}
}

func TestEnricherFallsBackToDiscogs(t *testing.T) {
	music := &fakeMusic{err: errors.New("service unavailable")}
	vinyl := &fakeVinyl{releases: []catalog.DiscogsRelease{{
		Title: "Miles Davis - Kind Of Blue", Year: "1959", Genres: []string{"Jazz"},
	}}}
	enricher := catalog.NewEnricher(music, vinyl, nil, nil)

	enrichment := enricher.Enrich(context.Background(), "music", "Kind Of Blue", "Miles Davis")
	if enrichment.Source != "discogs" {
		t.Fatalf("expected discogs fallback, got %#v", enrichment)
	}
	if enrichment.Artist != "Miles Davis" || enrichment.Album != "Kind Of Blue" {
		t.Fatalf("expected artist/album split, got %#v", enrichment)
	}
}

func TestEnricherVideoPicksMostPopular(t *testing.T) {
	video := &fakeVideo{
		movies: []catalog.TMDBResult{{Title: "Heat", Popularity: 40, ReleaseDate: "1995-12-15", Overview: "Crime saga"}},
		shows:  []catalog.TMDBResult{{Name: "Heat TV", Popularity: 12, FirstAirDate: "2010-01-01"}},
	}
	enricher := catalog.NewEnricher(nil, nil, video, nil)

	enrichment := enricher.Enrich(context.Background(), "video", "Heat", "")
	if enrichment.Source != "tmdb" || enrichment.Title != "Heat" || enrichment.Year != "1995" {
		t.Fatalf("unexpected enrichment: %#v", enrichment)
	}
}

func TestEnricherDegradesToEmpty(t *testing.T) {
	enricher := catalog.NewEnricher(nil, nil, nil, nil)
	if got := enricher.Enrich(context.Background(), "music", "Anything", ""); !got.Empty() {
		t.Fatalf("expected empty enrichment, got %#v", got)
	}
	if got := enricher.Enrich(context.Background(), "video", "", ""); !got.Empty() {
		t.Fatalf("expected empty enrichment for blank title, got %#v", got)
	}
}
