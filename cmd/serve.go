package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/setlist/internal/server"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the JSON API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.mixEngine()
	if err != nil {
		return err
	}

	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		cfg.Port = port
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", shared.ErrInvalidFlag, cfg.Port)
	}

	logger := shared.WithLogger(r.logger, "component", "api")
	api := server.NewAPIHandler(engine, logger).AllowCallerTokens(r.callerWriter)
	router := server.NewAPIRouter(api, logger, cfg.CORSOrigins)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.writePlain("→ Serving API at http://%s (Ctrl+C to stop)\n", cfg.Addr())
	return server.ListenAndServe(ctx, httpServer, logger)
}

// callerWriter builds a Spotify client that acts with an access token sent by an API caller.
// The app credentials still come from the config file.
func (r *Runner) callerWriter(ctx context.Context, accessToken string) (server.PlaylistWriter, error) {
	svc, err := services.NewSpotifyService(r.config.Credentials.Spotify.Map())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	svc.SetLogger(r.logger)
	if err := svc.Authenticate(ctx, map[string]string{"access_token": accessToken}); err != nil {
		return nil, err
	}
	return svc, nil
}
