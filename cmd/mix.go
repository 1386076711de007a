package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/setlist/internal/formatter"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/desertthunder/setlist/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Sequence orders a playlist with beam search.
func (r *Runner) Sequence(ctx context.Context, cmd *cli.Command) error {
	return r.optimize(ctx, cmd, tasks.OptimizeOpts{
		Method:    tasks.MethodBeam,
		BeamWidth: cmd.Int("beam-width"),
	})
}

// Group orders a playlist cluster by cluster.
func (r *Runner) Group(ctx context.Context, cmd *cli.Command) error {
	return r.optimize(ctx, cmd, tasks.OptimizeOpts{
		Method:      tasks.MethodCluster,
		MaxClusters: cmd.Int("clusters"),
	})
}

func (r *Runner) optimize(ctx context.Context, cmd *cli.Command, opts tasks.OptimizeOpts) error {
	playlistID, err := shared.ParsePlaylistID(cmd.String("playlist"))
	if err != nil {
		return err
	}
	engine, err := r.mixEngine()
	if err != nil {
		return err
	}

	r.logger.Info("optimizing playlist", "playlist", playlistID, "method", opts.Method)

	var result *tasks.OptimizeResult
	err = r.withReauth(ctx, func() error {
		progress, stop := r.progress()
		defer stop()
		result, err = engine.Optimize(ctx, progress, playlistID, opts)
		return err
	})
	if err != nil {
		return err
	}

	if err := r.emit(cmd, func(f formatter.Format) ([]byte, error) {
		return formatter.OptimizeResult(result, f)
	}); err != nil {
		return err
	}

	if !cmd.Bool("apply") {
		return nil
	}
	if !result.Solved() {
		r.logger.Warn("nothing to apply, no order was produced", "playlist", playlistID)
		return nil
	}

	progress, stop := r.progress()
	defer stop()
	if err := engine.Apply(ctx, progress, result); err != nil {
		return err
	}
	r.logger.Info("new order written", "playlist", result.Playlist.Name, "tracks", len(result.Entries))
	return nil
}

// Merge interleaves two playlists back to back.
func (r *Runner) Merge(ctx context.Context, cmd *cli.Command) error {
	idA, idB, err := pairIDs(cmd)
	if err != nil {
		return err
	}
	engine, err := r.mixEngine()
	if err != nil {
		return err
	}

	r.logger.Info("merging playlists", "a", idA, "b", idB)

	var result *tasks.MergeResult
	err = r.withReauth(ctx, func() error {
		progress, stop := r.progress()
		defer stop()
		result, err = engine.Merge(ctx, progress, idA, idB)
		return err
	})
	if err != nil {
		return err
	}

	return r.emit(cmd, func(f formatter.Format) ([]byte, error) {
		return formatter.MergeResult(result, f)
	})
}

// Compare estimates the similarity of two playlists.
func (r *Runner) Compare(ctx context.Context, cmd *cli.Command) error {
	idA, idB, err := pairIDs(cmd)
	if err != nil {
		return err
	}
	engine, err := r.mixEngine()
	if err != nil {
		return err
	}

	r.logger.Info("comparing playlists", "a", idA, "b", idB)

	var result *tasks.CompareResult
	err = r.withReauth(ctx, func() error {
		progress, stop := r.progress()
		defer stop()
		result, err = engine.Compare(ctx, progress, idA, idB)
		return err
	})
	if err != nil {
		return err
	}

	return r.emit(cmd, func(f formatter.Format) ([]byte, error) {
		return formatter.CompareResult(result, f)
	})
}

// Reorder writes a given order, or the order saved by a recorded run, to a playlist.
func (r *Runner) Reorder(ctx context.Context, cmd *cli.Command) error {
	playlistID, err := shared.ParsePlaylistID(cmd.String("playlist"))
	if err != nil {
		return err
	}

	uris := cmd.StringSlice("uris")
	if seq := cmd.Int("run"); seq > 0 {
		if len(uris) > 0 {
			return fmt.Errorf("%w: cannot specify both --uris and --run", shared.ErrInvalidArgument)
		}
		if uris, err = r.runURIs(seq); err != nil {
			return err
		}
	}
	if len(uris) == 0 {
		return fmt.Errorf("%w: either --uris or --run must be provided", shared.ErrMissingArgument)
	}

	engine, err := r.mixEngine()
	if err != nil {
		return err
	}

	if err := r.withReauth(ctx, func() error {
		progress, stop := r.progress()
		defer stop()
		return engine.Reorder(ctx, progress, playlistID, uris)
	}); err != nil {
		return err
	}

	r.writePlain("✓ Playlist reordered successfully (%d tracks)\n", len(uris))
	return nil
}

func pairIDs(cmd *cli.Command) (string, string, error) {
	idA, err := shared.ParsePlaylistID(cmd.String("a"))
	if err != nil {
		return "", "", fmt.Errorf("--a: %w", err)
	}
	idB, err := shared.ParsePlaylistID(cmd.String("b"))
	if err != nil {
		return "", "", fmt.Errorf("--b: %w", err)
	}
	return idA, idB, nil
}

// outputFormat resolves --json, --format and --output into one format.
func outputFormat(cmd *cli.Command) (formatter.Format, error) {
	if cmd.Bool("json") {
		return formatter.FormatJSON, nil
	}
	if f := cmd.String("format"); f != "" {
		return formatter.ParseFormat(f)
	}
	if out := cmd.String("output"); out != "" {
		return formatter.FormatForPath(out), nil
	}
	return formatter.FormatText, nil
}

// emit renders a result and writes it to --output or stdout.
func (r *Runner) emit(cmd *cli.Command, render func(formatter.Format) ([]byte, error)) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	data, err := render(format)
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteFile(path, data); err != nil {
			return err
		}
		r.logger.Info("result written", "path", path, "format", format)
		return r.writePlain("✓ Written to %s\n", path)
	}
	return r.writeBytes(data)
}

// progress starts logging engine updates. stop closes the channel and waits for the last update to be logged.
func (r *Runner) progress() (chan tasks.ProgressUpdate, func()) {
	ch := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range ch {
			r.logger.Info(update.Message, "phase", update.Phase)
		}
	}()
	return ch, func() {
		close(ch)
		<-done
	}
}
