// Spotify Web API client: playlist reads and writes, audio features and artist genres.
// See https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// playlistChunkSize is the most items Spotify accepts per add or replace call.
	playlistChunkSize = 100
)

var errNotFound = errors.New("resource not found")

// Wire types hold only the fields setlist reads.

// SpotifyUser is the /me profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type SpotifyImage struct {
	URL string `json:"url"`
}

// SpotifyTrack is a full track object. Type is "episode" for podcast items.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	URI         string          `json:"uri"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	IsLocal     bool            `json:"is_local"`
	DurationMS  int             `json:"duration_ms"`
	Popularity  int             `json:"popularity"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
}

// SpotifyArtist carries genres only when fetched from the artist endpoints.
type SpotifyArtist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

type SpotifyAlbum struct {
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyPlaylistTrack is one playlist item. Track is null for items removed from the catalog.
type SpotifyPlaylistTrack struct {
	Track *SpotifyTrack `json:"track"`
}

// SpotifyPlaylistTracks is one page of playlist items; Next is an absolute URL.
type SpotifyPlaylistTracks struct {
	Items []SpotifyPlaylistTrack `json:"items"`
	Total int                    `json:"total"`
	Next  *string                `json:"next"`
}

// SpotifyPlaylist is a full playlist. Tracks holds the first page only.
type SpotifyPlaylist struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Public      bool                  `json:"public"`
	Tracks      SpotifyPlaylistTracks `json:"tracks"`
}

// SpotifySimplePlaylist is the playlist object returned by list endpoints, with a track count instead of items.
type SpotifySimplePlaylist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
	Tracks      struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

// SpotifyPaginatedPlaylists is one page of /me/playlists.
type SpotifyPaginatedPlaylists struct {
	Items []SpotifySimplePlaylist `json:"items"`
	Total int                     `json:"total"`
	Next  *string                 `json:"next"`
}

// SpotifyService implements [Service] and [FeatureSource] for the Spotify Web API.
//
// Uses [oauth2] for authentication. Requests that hit 429 or 5xx are retried with backoff, honoring Retry-After.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	credentials    map[string]string
	baseURL        string
	logger         *log.Logger
	onTokenRefresh func(*oauth2.Token)
	maxRetries     int
	backoff        time.Duration
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		credentials: credentials,
		baseURL:     spotifyBaseURL,
		logger:      log.Default(),
		maxRetries:  defaultMaxRetries,
		backoff:     defaultBackoff,
	}, nil
}

// SetBaseURL points the client at a different API root.
func (s *SpotifyService) SetBaseURL(baseURL string) {
	s.baseURL = strings.TrimSuffix(baseURL, "/")
}

// SetLogger replaces the logger used for retry warnings.
func (s *SpotifyService) SetLogger(l *log.Logger) {
	if l != nil {
		s.logger = l
	}
}

// SetTokenRefreshCallback registers fn to receive every newly issued token so it can be persisted.
// Must be called before [SpotifyService.Authenticate].
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// Authenticate performs OAuth2 authentication with Spotify. Expects either an "access_token" or "auth_code" in credentials.
//
// An access token may come with "refresh_token" and an RFC 3339 "token_expiry", in which case expired tokens are refreshed.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken := credentials["access_token"]; accessToken != "" {
		token := &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    "Bearer",
		}
		if raw := credentials["token_expiry"]; raw != "" {
			expiry, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return fmt.Errorf("%w: token_expiry: %v", shared.ErrInvalidCredentials, err)
			}
			token.Expiry = expiry
		}
		s.useToken(ctx, token)
		return nil
	}

	if authCode := credentials["auth_code"]; authCode != "" {
		_, err := s.ExchangeCode(ctx, authCode)
		return err
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// ExchangeCode trades an authorization code for a token and authenticates the service with it.
func (s *SpotifyService) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	s.useToken(ctx, token)
	return token, nil
}

func (s *SpotifyService) useToken(ctx context.Context, token *oauth2.Token) {
	s.token = token
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(ctx, token),
		callback: s.onTokenRefresh,
		last:     token.AccessToken,
	}
	s.httpClient = oauth2.NewClient(ctx, source)
}

// Token returns the token the service was authenticated with.
func (s *SpotifyService) Token() *oauth2.Token {
	return s.token
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// refreshableTokenSource reports each distinct access token to callback.
type refreshableTokenSource struct {
	mu       sync.Mutex
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	last     string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	if token.AccessToken != r.last {
		r.last = token.AccessToken
		if r.callback != nil {
			r.callback(token)
		}
	}
	return token, nil
}

// doRequest performs an authenticated request against the API.
//
// endpoint is either a path below the base URL or an absolute URL returned by the API for pagination.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http") {
		apiURL = s.baseURL + endpoint
	} else if !strings.HasPrefix(endpoint, s.baseURL) {
		return fmt.Errorf("%w: refusing to follow %s", shared.ErrInvalidInput, endpoint)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.doRequestWithRetry(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify API status %d", shared.ErrTokenExpired, code)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", errNotFound, endpoint)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: spotify API status %d", shared.ErrRateLimited, code)
	case code < 200 || code >= 300:
		return fmt.Errorf("%w: spotify API error: status %d", shared.ErrAPIRequest, code)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Track retrieves a single track by ID.
func (s *SpotifyService) Track(ctx context.Context, trackID string) (*SpotifyTrack, error) {
	var track SpotifyTrack
	if err := s.doRequest(ctx, http.MethodGet, "/tracks/"+trackID, nil, &track); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, trackID)
		}
		return nil, err
	}
	return &track, nil
}

// Artist retrieves an artist by ID.
func (s *SpotifyService) Artist(ctx context.Context, artistID string) (*SpotifyArtist, error) {
	var artist SpotifyArtist
	if err := s.doRequest(ctx, http.MethodGet, "/artists/"+artistID, nil, &artist); err != nil {
		return nil, err
	}
	return &artist, nil
}

// RelatedArtists retrieves the artists Spotify considers similar to artistID.
func (s *SpotifyService) RelatedArtists(ctx context.Context, artistID string) ([]SpotifyArtist, error) {
	var response struct {
		Artists []SpotifyArtist `json:"artists"`
	}
	endpoint := fmt.Sprintf("/artists/%s/related-artists", artistID)
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return response.Artists, nil
}

// UserPlaylists retrieves the current user's playlists with pagination.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	limit = min(max(limit, 1), 50)

	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// Playlist retrieves a playlist by ID, including the first page of its tracks.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, http.MethodGet, "/playlists/"+playlistID, nil, &playlist); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
		}
		return nil, err
	}
	return &playlist, nil
}

// PlaylistTracks returns every item of a playlist, following the next cursor from the first page.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, first SpotifyPlaylistTracks) ([]SpotifyPlaylistTrack, error) {
	items := append([]SpotifyPlaylistTrack(nil), first.Items...)
	next := first.Next

	for next != nil && *next != "" {
		var page SpotifyPlaylistTracks
		if err := s.doRequest(ctx, http.MethodGet, *next, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch playlist page: %w", err)
		}
		items = append(items, page.Items...)
		next = page.Next
	}

	return items, nil
}

// GetPlaylists retrieves all playlists for the authenticated user.
func (s *SpotifyService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var all []models.Playlist
	limit := 50
	offset := 0

	for {
		response, err := s.UserPlaylists(ctx, limit, offset)
		if err != nil {
			return nil, err
		}

		for _, sp := range response.Items {
			all = append(all, models.Playlist{
				ID:          sp.ID,
				Name:        sp.Name,
				Description: sp.Description,
				TrackCount:  sp.Tracks.Total,
				Public:      sp.Public,
			})
		}

		if response.Next == nil || len(response.Items) == 0 {
			break
		}
		offset += len(response.Items)
	}

	return all, nil
}

// ExportPlaylist exports a playlist with all its tracks.
//
// Local files, episodes and removed items have no catalog ID and are skipped.
func (s *SpotifyService) ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error) {
	sp, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	items, err := s.PlaylistTracks(ctx, sp.Tracks)
	if err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(items))
	for _, item := range items {
		if item.Track == nil || item.Track.ID == "" || item.Track.IsLocal {
			continue
		}
		if item.Track.Type != "" && item.Track.Type != "track" {
			continue
		}
		tracks = append(tracks, toTrack(*item.Track))
	}

	return &models.PlaylistExport{
		Playlist: models.Playlist{
			ID:          sp.ID,
			Name:        sp.Name,
			Description: sp.Description,
			TrackCount:  sp.Tracks.Total,
			Public:      sp.Public,
		},
		Tracks: tracks,
	}, nil
}

// ReplacePlaylistItems overwrites a playlist with uris.
//
// The first chunk of up to 100 replaces the contents (an empty list clears the playlist) and the remaining
// chunks are appended in order.
func (s *SpotifyService) ReplacePlaylistItems(ctx context.Context, playlistID string, uris []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)

	first := append([]string{}, uris[:min(len(uris), playlistChunkSize)]...)
	if err := s.doRequest(ctx, http.MethodPut, endpoint, map[string][]string{"uris": first}, nil); err != nil {
		if errors.Is(err, errNotFound) {
			return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
		}
		return fmt.Errorf("failed to replace playlist items: %w", err)
	}

	for start := playlistChunkSize; start < len(uris); start += playlistChunkSize {
		chunk := uris[start:min(start+playlistChunkSize, len(uris))]
		if err := s.doRequest(ctx, http.MethodPost, endpoint, map[string][]string{"uris": chunk}, nil); err != nil {
			return fmt.Errorf("failed to add playlist items %d-%d: %w", start, start+len(chunk), err)
		}
	}

	return nil
}

// GetTrack retrieves a track and maps it to [models.Track].
func (s *SpotifyService) GetTrack(ctx context.Context, trackID string) (*models.Track, error) {
	st, err := s.Track(ctx, trackID)
	if err != nil {
		return nil, err
	}
	track := toTrack(*st)
	return &track, nil
}

// AudioFeatures retrieves the audio analysis summary for a track.
func (s *SpotifyService) AudioFeatures(ctx context.Context, trackID string) (*AudioFeatures, error) {
	var features AudioFeatures
	err := s.doRequest(ctx, http.MethodGet, "/audio-features/"+trackID, nil, &features)
	if errors.Is(err, errNotFound) || (err == nil && features.ID == "") {
		return nil, fmt.Errorf("%w: %s", shared.ErrFeaturesNotFound, trackID)
	}
	if err != nil {
		return nil, err
	}
	return &features, nil
}

// RelatedArtistGenres returns the union of the genres of artistID's related artists.
func (s *SpotifyService) RelatedArtistGenres(ctx context.Context, artistID string) ([]string, error) {
	related, err := s.RelatedArtists(ctx, artistID)
	if err != nil {
		return nil, err
	}

	var genres []string
	for _, a := range related {
		genres = append(genres, a.Genres...)
	}
	return models.NewGenreSet(genres...), nil
}

func toTrack(st SpotifyTrack) models.Track {
	track := models.Track{
		ID:         st.ID,
		URI:        st.URI,
		Title:      st.Name,
		Album:      st.Album.Name,
		Duration:   st.DurationMS / 1000,
		Popularity: st.Popularity,
		ISRC:       st.ExternalIDs.ISRC,
	}

	if len(st.Artists) > 0 {
		track.Artist = st.Artists[0].Name
		track.ArtistID = st.Artists[0].ID
	}

	if len(st.Album.Images) > 0 {
		track.AlbumCover = st.Album.Images[0].URL
	}

	if track.URI == "" {
		track.URI = "spotify:track:" + st.ID
	}

	return track
}
