package services_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
	tu "github.com/desertthunder/setlist/internal/testing"
	"golang.org/x/oauth2"
)

// stubbedSpotify authenticates a service whose every request gets status back from the transport.
func stubbedSpotify(t *testing.T, status int, body string) *services.SpotifyService {
	t.Helper()

	srv, err := services.NewSpotifyService(map[string]string{"client_id": "id", "client_secret": "secret"})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	resp := &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
	client := &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
	if err := srv.Authenticate(ctx, map[string]string{"access_token": "token"}); err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}
	return srv
}

func TestNotFoundMapping(t *testing.T) {
	tc := []struct {
		name string
		call func(*services.SpotifyService) error
		want error
	}{
		{
			name: "track",
			call: func(s *services.SpotifyService) error {
				_, err := s.GetTrack(context.Background(), "missing")
				return err
			},
			want: shared.ErrTrackNotFound,
		},
		{
			name: "playlist export",
			call: func(s *services.SpotifyService) error {
				_, err := s.ExportPlaylist(context.Background(), "missing")
				return err
			},
			want: shared.ErrPlaylistNotFound,
		},
		{
			name: "playlist replace",
			call: func(s *services.SpotifyService) error {
				return s.ReplacePlaylistItems(context.Background(), "missing", []string{"spotify:track:a"})
			},
			want: shared.ErrPlaylistNotFound,
		},
		{
			name: "audio features",
			call: func(s *services.SpotifyService) error {
				_, err := s.AudioFeatures(context.Background(), "missing")
				return err
			},
			want: shared.ErrFeaturesNotFound,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			srv := stubbedSpotify(t, http.StatusNotFound, `{"error":{"status":404}}`)
			if err := tt.call(srv); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAudioFeaturesWithoutID(t *testing.T) {
	srv := stubbedSpotify(t, http.StatusOK, `{"tempo": 120}`)
	if _, err := srv.AudioFeatures(context.Background(), "t1"); !errors.Is(err, shared.ErrFeaturesNotFound) {
		t.Errorf("expected ErrFeaturesNotFound for an empty analysis, got %v", err)
	}
}
