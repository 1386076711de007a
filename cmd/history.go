package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/setlist/internal/formatter"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/repositories"
	"github.com/urfave/cli/v3"
)

type runView struct {
	Sequence       int       `json:"run"`
	Method         string    `json:"method"`
	PlaylistID     string    `json:"playlist_id"`
	TrackIDs       []string  `json:"track_ids"`
	Dropped        int       `json:"dropped"`
	TransitionCost *float64  `json:"transition_cost"`
	CreatedAt      time.Time `json:"created_at"`
}

func newRunView(run *models.Run) runView {
	v := runView{
		Sequence:   run.Sequence(),
		Method:     run.Method(),
		PlaylistID: run.PlaylistID(),
		TrackIDs:   run.TrackIDs(),
		Dropped:    run.DroppedCount(),
		CreatedAt:  run.CreatedAt(),
	}
	if run.Solved() {
		cost := run.Cost()
		v.TransitionCost = &cost
	}
	return v
}

func (r *Runner) runRepository() (*repositories.RunRepository, error) {
	if _, err := r.database(); err != nil {
		return nil, err
	}
	return r.runs, nil
}

// History lists recorded runs, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.runRepository()
	if err != nil {
		return err
	}

	runs, err := repo.List(map[string]any{
		"playlist_id": cmd.String("playlist"),
		"method":      cmd.String("method"),
		"limit":       cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]runView, len(runs))
		for i, run := range runs {
			views[i] = newRunView(run)
		}
		return r.writeJSON(views, true)
	}
	return r.writeBytes(formatter.RunsToText(runs))
}

// HistoryShow prints the track order saved by one run.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.runRepository()
	if err != nil {
		return err
	}

	run, err := repo.GetBySequence(cmd.Int("run"))
	if err != nil {
		return fmt.Errorf("run #%d: %w", cmd.Int("run"), err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(newRunView(run), true)
	}

	r.writePlain("Run #%d (%s) of playlist %s\n", run.Sequence(), run.Method(), run.PlaylistID())
	r.writePlain("Recorded: %s\n", run.CreatedAt().Format(time.RFC1123))
	r.writePlain("Transition cost: %s\n", formatter.FormatCost(run.Cost()))
	if run.DroppedCount() > 0 {
		r.writePlain("Dropped: %d tracks\n", run.DroppedCount())
	}
	r.writePlain("\n")
	for i, id := range run.TrackIDs() {
		r.writePlain("%3d. %s\n", i+1, id)
	}
	return nil
}

// HistoryDelete removes a run from the history.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.runRepository()
	if err != nil {
		return err
	}

	run, err := repo.GetBySequence(cmd.Int("run"))
	if err != nil {
		return fmt.Errorf("run #%d: %w", cmd.Int("run"), err)
	}
	if err := repo.Delete(run.ID()); err != nil {
		return err
	}

	r.writePlain("✓ Deleted run #%d\n", run.Sequence())
	return nil
}

// runURIs returns the track URIs saved by run number seq.
func (r *Runner) runURIs(seq int) ([]string, error) {
	repo, err := r.runRepository()
	if err != nil {
		return nil, err
	}

	run, err := repo.GetBySequence(seq)
	if err != nil {
		return nil, fmt.Errorf("run #%d: %w", seq, err)
	}

	uris := make([]string, len(run.TrackIDs()))
	for i, id := range run.TrackIDs() {
		uris[i] = "spotify:track:" + id
	}
	return uris, nil
}
