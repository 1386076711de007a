package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/desertthunder/setlist/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI opens the interactive sequencer: pick a playlist, pick a method, review the order and apply it.
//
// Logging moves to --log-file for the lifetime of the program so log lines do not draw over the screen.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized, run `setlist spotify auth` first", shared.ErrServiceUnavailable)
	}

	logPath := cmd.String("log-file")
	fileLogger, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	previous := r.logger
	r.SetLogger(fileLogger)
	defer r.SetLogger(previous)

	engine, err := r.mixEngine()
	if err != nil {
		return err
	}

	program := tea.NewProgram(ui.NewModel(ctx, r.spotify, engine), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	previous.Debug("tui closed", "log", logPath)
	return nil
}
