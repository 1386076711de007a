package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/mixing"
	"github.com/desertthunder/setlist/internal/repositories"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/desertthunder/setlist/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    services.Service
	db         *sql.DB
	ownsDB     bool
	features   *repositories.FeatureRepository
	runs       *repositories.RunRepository
	logger     *log.Logger
	output     io.Writer
	engine     *tasks.MixEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    services.Service
	DB         *sql.DB // Opened from Config.Database on first use when nil
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		logger:     opts.Logger,
		output:     opts.Output,
	}
	if opts.DB != nil {
		r.useDatabase(opts.DB)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, spotifyCommand, sequenceCommand, groupCommand, mergeCommand, compareCommand,
		reorderCommand, historyCommand, cacheCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and anything it builds afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	if s, ok := r.spotify.(*services.SpotifyService); ok {
		s.SetLogger(l)
	}
}

// Close releases the database handle if the runner opened it.
func (r *Runner) Close() error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db, r.features, r.runs, r.engine = nil, nil, nil, nil
	return err
}

func (r *Runner) useDatabase(db *sql.DB) {
	r.db = db
	r.features = repositories.NewFeatureRepository(db)
	r.runs = repositories.NewRunRepository(db)
}

// database opens and migrates the configured database on first use.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.logger.Debug("database opened", "path", r.config.Database.Path)
	r.useDatabase(db)
	r.ownsDB = true
	return db, nil
}

// mixEngine builds the engine from configuration on first use.
//
// The feature cache and run history are attached when the database can be opened. Without it the engine
// still works, uncached and without history.
func (r *Runner) mixEngine() (*tasks.MixEngine, error) {
	if r.engine != nil {
		return r.engine, nil
	}
	if r.spotify == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}
	source, ok := r.spotify.(services.FeatureSource)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot look up audio features", shared.ErrServiceUnavailable, r.spotify.Name())
	}
	if err := r.config.Mixing.Validate(); err != nil {
		return nil, err
	}

	providerOpts := tasks.ProviderOpts{
		Workers:   r.config.Resolver.Workers,
		RateLimit: r.config.Resolver.RateLimit,
		Logger:    shared.WithLogger(r.logger, "component", "provider"),
	}
	engineOpts := tasks.EngineOpts{
		BeamWidth:       r.config.Mixing.BeamWidth,
		MaxClusters:     r.config.Mixing.MaxClusters,
		Weights:         mixing.Weights(r.config.Mixing.Weights),
		ClampSimilarity: r.config.Mixing.ClampSimilarity,
		Logger:          shared.WithLogger(r.logger, "component", "engine"),
	}

	if _, err := r.database(); err != nil {
		r.logger.Warn("continuing without feature cache or run history", "error", err)
	} else {
		if r.config.Resolver.Cache {
			providerOpts.Cache = repositories.NewFeatureCacheAdapter(r.features)
		}
		engineOpts.Runs = r.runs
	}

	engine, err := tasks.NewMixEngine(r.spotify, tasks.NewSpotifyFeatureProvider(source, providerOpts), engineOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to build mix engine: %w", err)
	}
	r.engine = engine
	return engine, nil
}

// saveTokens stores token in the config and writes it to configPath when one is set.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}
	if token == nil {
		return fmt.Errorf("%w: token cannot be nil", shared.ErrInvalidCredentials)
	}

	r.config.Credentials.Spotify.SetToken(token)
	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
