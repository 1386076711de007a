package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/server"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// authorizer is the part of [services.SpotifyService] the OAuth flow needs.
type authorizer interface {
	server.TokenExchanger
	GetAuthURL(state string) string
}

// SpotifyAuth runs the authorization code flow and stores the resulting tokens in the config file.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	svc, ok := r.spotify.(*services.SpotifyService)
	if !ok || svc == nil {
		if svc = r.newSpotifyService(ctx); svc == nil {
			return fmt.Errorf("%w: failed to create Spotify service", shared.ErrServiceUnavailable)
		}
		r.spotify = svc
	}

	token, err := r.doOAuth(ctx, svc, "authorization")
	if err != nil {
		return err
	}
	if err := r.saveTokens(token); err != nil {
		return err
	}

	r.writePlainln("✓ Spotify connected, tokens saved to %s", r.configPath)
	r.writePlain("Try: setlist spotify playlists\n")
	return nil
}

// SpotifyPlaylists lists the playlists of the authorized account, so their IDs can be passed to --playlist.
func (r *Runner) SpotifyPlaylists(ctx context.Context, cmd *cli.Command) error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	var playlists []models.Playlist
	err := r.withReauth(ctx, func() error {
		var err error
		playlists, err = r.spotify.GetPlaylists(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	r.logger.Debug("playlists fetched", "count", len(playlists))

	if limit := cmd.Int("limit"); limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("%d playlists:\n\n", len(playlists))
	for _, p := range playlists {
		r.writePlain("%-24s %4d tracks  %s\n", p.ID, p.TrackCount, p.Name)
	}
	return nil
}

// doOAuth serves the redirect URI on the configured address until one callback arrives or authTimeout passes.
func (r *Runner) doOAuth(ctx context.Context, auth authorizer, purpose string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	callback := server.NewOAuthHandler(auth, state)
	mux := server.NewMux()
	mux.Use(server.Recover(r.logger))
	mux.Mount(callback)

	addr := r.config.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("cannot listen for the OAuth callback on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("OAuth callback server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down OAuth callback server", "error", err)
		}
	}()
	r.logger.Debug("waiting for OAuth callback", "purpose", purpose, "addr", addr)

	authURL := auth.GetAuthURL(state)
	r.writePlain("→ Opening browser for Spotify %s...\n", purpose)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser", "error", err)
		r.writePlain("Open this URL to continue:\n%s\n\n", authURL)
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)

	waitCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	select {
	case result := <-callback.Result():
		if result.Error() != nil {
			return nil, fmt.Errorf("authorization failed: %w", result.Error())
		}
		if result.Token == nil {
			return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
		}
		return result.Token, nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: no authorization within %s", shared.ErrTimeout, authTimeout)
	}
}

// withReauth runs op and, when Spotify rejects the stored token, reauthorizes once and retries.
func (r *Runner) withReauth(ctx context.Context, op func() error) error {
	err := op()
	if !errors.Is(err, shared.ErrTokenExpired) && !errors.Is(err, shared.ErrNotAuthenticated) {
		return err
	}
	if err := r.reauthorize(ctx); err != nil {
		return err
	}
	return op()
}

// reauthorize repeats the OAuth flow for a Spotify service whose token was rejected.
func (r *Runner) reauthorize(ctx context.Context) error {
	svc, ok := r.spotify.(*services.SpotifyService)
	if !ok || svc == nil {
		if r.spotify == nil {
			return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
		}
		return fmt.Errorf("%w: %s does not support reauthorization", shared.ErrAuthFailed, r.spotify.Name())
	}

	r.writePlainln("⚠ Spotify authorization required. Starting reauthorization...")
	token, err := r.doOAuth(ctx, svc, "reauthorization")
	if err != nil {
		return fmt.Errorf("reauthorization failed: %w", err)
	}
	if err := r.saveTokens(token); err != nil {
		return err
	}
	r.writePlainln("✓ Reauthorized, retrying")
	return nil
}
