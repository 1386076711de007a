// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
)

// ClubGenres is a five-genre set, enough to zero the genre term between two records that share it.
var ClubGenres = []string{"deep house", "house", "minimal", "tech house", "techno"}

// Record builds a valid [models.FeatureRecord] with neutral unit attributes.
func Record(id string, key, mode int, tempo float64, genres ...string) models.FeatureRecord {
	return models.FeatureRecord{
		ID:           id,
		Name:         "Track " + id,
		Artist:       "Artist " + id,
		Key:          key,
		Mode:         mode,
		Tempo:        tempo,
		Energy:       0.5,
		Danceability: 0.5,
		Valence:      0.5,
		Loudness:     -8,
		Genres:       models.NewGenreSet(genres...),
	}
}

// ClubRecord builds a C major record carrying [ClubGenres], so only tempo separates two of them.
func ClubRecord(id string, tempo float64) models.FeatureRecord {
	return Record(id, 0, models.Major, tempo, ClubGenres...)
}

// MockService is a test double for [services.Service] and [services.FeatureSource].
//
// Track metadata and audio features are derived from Features unless Tracks or Durations override them.
// A track's artist ID is its record's Artist, and related-artist genres default to that record's Genres.
type MockService struct {
	Playlists    map[string]*models.PlaylistExport
	Tracks       map[string]models.Track
	Features     map[string]models.FeatureRecord
	Durations    map[string]int // duration_ms overrides
	ArtistGenres map[string][]string
	Err          error            // returned by playlist calls
	FeatureErrs  map[string]error // per-track lookup failures
	Replaced     map[string][]string

	mu    sync.Mutex
	calls map[string]int
}

// NewMockService builds a [MockService] holding one playlist made of records, in order.
func NewMockService(playlistID string, records ...models.FeatureRecord) *MockService {
	m := &MockService{
		Playlists: map[string]*models.PlaylistExport{},
		Features:  map[string]models.FeatureRecord{},
	}
	m.AddPlaylist(playlistID, records...)
	return m
}

// AddPlaylist registers records as a playlist and makes their features resolvable.
func (m *MockService) AddPlaylist(playlistID string, records ...models.FeatureRecord) {
	export := &models.PlaylistExport{
		Playlist: models.Playlist{ID: playlistID, Name: "Playlist " + playlistID, TrackCount: len(records)},
		Tracks:   make([]models.Track, 0, len(records)),
	}
	for _, r := range records {
		m.Features[r.ID] = r
		export.Tracks = append(export.Tracks, m.track(r))
	}
	m.Playlists[playlistID] = export
}

func (m *MockService) track(r models.FeatureRecord) models.Track {
	return models.Track{
		ID:       r.ID,
		URI:      "spotify:track:" + r.ID,
		Title:    r.Name,
		Artist:   r.Artist,
		ArtistID: r.Artist,
		Duration: 200,
	}
}

func (m *MockService) count(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[name]++
}

// Calls returns how many times the named method was invoked.
func (m *MockService) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *MockService) Authenticate(ctx context.Context, credentials map[string]string) error {
	return nil
}

func (m *MockService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var playlists []models.Playlist
	for _, p := range m.Playlists {
		playlists = append(playlists, p.Playlist)
	}
	return playlists, nil
}

func (m *MockService) ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error) {
	m.count("ExportPlaylist")
	if m.Err != nil {
		return nil, m.Err
	}
	export, ok := m.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return export, nil
}

func (m *MockService) ReplacePlaylistItems(ctx context.Context, playlistID string, uris []string) error {
	m.count("ReplacePlaylistItems")
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Replaced == nil {
		m.Replaced = map[string][]string{}
	}
	m.Replaced[playlistID] = append([]string(nil), uris...)
	return nil
}

func (m *MockService) Name() string { return "mock" }

func (m *MockService) GetTrack(ctx context.Context, trackID string) (*models.Track, error) {
	m.count("GetTrack")
	if err := m.FeatureErrs[trackID]; err != nil {
		return nil, err
	}
	if t, ok := m.Tracks[trackID]; ok {
		return &t, nil
	}
	r, ok := m.Features[trackID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, trackID)
	}
	t := m.track(r)
	return &t, nil
}

func (m *MockService) AudioFeatures(ctx context.Context, trackID string) (*services.AudioFeatures, error) {
	m.count("AudioFeatures")
	r, ok := m.Features[trackID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrFeaturesNotFound, trackID)
	}
	duration := 200000
	if d, ok := m.Durations[trackID]; ok {
		duration = d
	}
	return &services.AudioFeatures{
		ID:           r.ID,
		Key:          r.Key,
		Mode:         r.Mode,
		Tempo:        r.Tempo,
		Energy:       r.Energy,
		Danceability: r.Danceability,
		Valence:      r.Valence,
		Loudness:     r.Loudness,
		DurationMS:   duration,
	}, nil
}

func (m *MockService) RelatedArtistGenres(ctx context.Context, artistID string) ([]string, error) {
	m.count("RelatedArtistGenres")
	if genres, ok := m.ArtistGenres[artistID]; ok {
		return genres, nil
	}
	for _, r := range m.Features {
		if r.Artist == artistID {
			return r.Genres, nil
		}
	}
	return nil, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
