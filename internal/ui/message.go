package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgProgressUpdate
	MsgOptimizeComplete
	MsgApplyComplete
)

type playlistsFetched struct {
	playlists []models.Playlist
	err       error
}

type optimizeComplete struct {
	result *tasks.OptimizeResult
	err    error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsFetched{playlists, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// optimizeCompleteMsg is the constructor for [MsgOptimizeComplete]
func optimizeCompleteMsg(result *tasks.OptimizeResult, err error) Msg {
	return Msg{kind: MsgOptimizeComplete, data: optimizeComplete{result, err}}
}

// applyCompleteMsg is the constructor for [MsgApplyComplete]. data holds the error, if any.
func applyCompleteMsg(err error) Msg {
	return Msg{kind: MsgApplyComplete, data: err}
}
