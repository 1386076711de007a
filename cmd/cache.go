package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/setlist/internal/formatter"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheWarm resolves every track of a playlist so later runs read features from the cache.
func (r *Runner) CacheWarm(ctx context.Context, cmd *cli.Command) error {
	playlistID, err := shared.ParsePlaylistID(cmd.String("playlist"))
	if err != nil {
		return err
	}
	if !r.config.Resolver.Cache {
		return fmt.Errorf("%w: resolver.cache is disabled", shared.ErrInvalidConfig)
	}
	engine, err := r.mixEngine()
	if err != nil {
		return err
	}
	if r.features == nil {
		return fmt.Errorf("%w: feature cache unavailable", shared.ErrServiceUnavailable)
	}

	r.logger.Infof("caching audio features for playlist: %s", playlistID)

	var resolved, dropped int
	var name string
	err = r.withReauth(ctx, func() error {
		progress, stop := r.progress()
		defer stop()
		ws, err := engine.Load(ctx, progress, playlistID)
		if err != nil {
			return err
		}
		name, resolved, dropped = ws.Playlist.Name, len(ws.Records), len(ws.Dropped)
		return nil
	})
	if err != nil {
		return err
	}

	r.writePlain("✓ Playlist cached: %s\n", name)
	r.writePlain("  Tracks with features: %d\n", resolved)
	if dropped > 0 {
		r.writePlain("  Dropped: %d\n", dropped)
	}
	return nil
}

// CacheList prints cached feature records.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.database(); err != nil {
		return err
	}

	cached, err := r.features.List(map[string]any{
		"artist": cmd.String("artist"),
		"limit":  cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		records := make([]models.FeatureRecord, len(cached))
		for i, c := range cached {
			records[i] = c.Record()
		}
		return r.writeJSON(records, true)
	}

	if len(cached) == 0 {
		return r.writePlain("No cached features.\n")
	}
	r.writePlain("%d cached records:\n\n", len(cached))
	for _, c := range cached {
		rec := c.Record()
		r.writePlain("%-24s %s - %s [%s, %.0f BPM] updated %s\n",
			rec.ID, rec.Artist, rec.Name, formatter.KeyName(rec.Key, rec.Mode), rec.Tempo,
			c.UpdatedAt().Format("2006-01-02"))
	}
	return nil
}

// CacheClear removes cached records, optionally only those older than --older-than.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.database(); err != nil {
		return err
	}

	var cutoff time.Time
	if age := cmd.Duration("older-than"); age > 0 {
		cutoff = time.Now().Add(-age)
	}

	removed, err := r.features.Prune(cutoff)
	if err != nil {
		return err
	}

	r.logger.Info("feature cache pruned", "removed", removed, "cutoff", cutoff)
	r.writePlain("✓ Removed %d cached records\n", removed)
	return nil
}
