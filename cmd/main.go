package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := newApp(runner)

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}

// newApp builds the root command around runner.
func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:    "setlist",
		Usage:   "Sequence Spotify playlists into DJ-friendly orders",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("SETLIST_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before: runner.Init,
		After: func(ctx context.Context, cmd *cli.Command) error {
			return runner.Close()
		},
		Commands: runner.register(),
	}
}

// Init loads the configuration named by --config and connects the Spotify service when credentials are present.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	r.configPath = cmd.String("config")
	if fileExists(r.configPath) {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			r.logger.Warn("failed to load config, using defaults", "path", r.configPath, "error", err)
		} else {
			r.config = config
		}
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	if r.spotify == nil {
		if svc := r.newSpotifyService(ctx); svc != nil {
			r.spotify = svc
		}
	}
	return ctx, nil
}

// newSpotifyService returns nil when client credentials are not configured.
func (r *Runner) newSpotifyService(ctx context.Context) *services.SpotifyService {
	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		r.logger.Debug("spotify credentials not configured")
		return nil
	}

	svc, err := services.NewSpotifyService(creds.Map())
	if err != nil {
		r.logger.Warn("failed to create Spotify service", "error", err)
		return nil
	}
	svc.SetLogger(shared.WithLogger(r.logger, "service", "spotify"))
	svc.SetTokenRefreshCallback(func(token *oauth2.Token) {
		if err := r.saveTokens(token); err != nil {
			r.logger.Warn("failed to persist refreshed token", "error", err)
		}
	})

	if creds.AccessToken != "" {
		if err := svc.Authenticate(ctx, creds.Map()); err != nil {
			r.logger.Warn("stored Spotify token rejected, run `setlist spotify auth`", "error", err)
		}
	}
	return svc
}
