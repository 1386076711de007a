// package services defines interface Service for interacting with HTTP APIs
package services

import (
	"context"

	"github.com/desertthunder/setlist/internal/models"
)

// Service defines the interface for catalog providers that can read and rewrite playlists.
type Service interface {
	// Authenticate performs OAuth or API key authentication with the service.
	// Returns an error if authentication fails.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// GetPlaylists retrieves all playlists for the authenticated user.
	GetPlaylists(ctx context.Context) ([]models.Playlist, error)

	// ExportPlaylist returns a playlist with every track, following pagination.
	ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error)

	// ReplacePlaylistItems overwrites the playlist's contents with uris, in order.
	ReplacePlaylistItems(ctx context.Context, playlistID string, uris []string) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// FeatureSource supplies the per-track lookups needed to build a [models.FeatureRecord].
type FeatureSource interface {
	// GetTrack retrieves track metadata by catalog ID.
	GetTrack(ctx context.Context, trackID string) (*models.Track, error)

	// AudioFeatures retrieves the analysed attributes of a track.
	AudioFeatures(ctx context.Context, trackID string) (*AudioFeatures, error)

	// RelatedArtistGenres returns the deduplicated genres of an artist's related artists.
	RelatedArtistGenres(ctx context.Context, artistID string) ([]string, error)
}

// AudioFeatures is the provider's analysis of a single track.
type AudioFeatures struct {
	ID           string  `json:"id"`
	Key          int     `json:"key"`
	Mode         int     `json:"mode"`
	Tempo        float64 `json:"tempo"`
	Energy       float64 `json:"energy"`
	Danceability float64 `json:"danceability"`
	Valence      float64 `json:"valence"`
	Loudness     float64 `json:"loudness"`
	DurationMS   int     `json:"duration_ms"`
}
