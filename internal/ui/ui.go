package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/setlist/internal/formatter"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	MethodView
	RunView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	spotify      services.Service
	engine       *tasks.MixEngine
	width        int
	height       int
	playlistList list.Model
	methodList   list.Model
	entryList    list.Model
	selected     *models.Playlist
	method       tasks.Method
	progressChan chan tasks.ProgressUpdate
	doneChan     chan Msg
	progress     tasks.ProgressUpdate
	spinner      spinner.Model
	result       *tasks.OptimizeResult
	applied      bool
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, spotify services.Service, engine *tasks.MixEngine) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	playlists := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	playlists.Title = "Spotify Playlists"

	methods := list.New(methodItems(), list.NewDefaultDelegate(), 0, 0)
	methods.Title = "Ordering Method"
	methods.SetFilteringEnabled(false)

	return &Model{
		ctx:          ctx,
		view:         PlaylistListView,
		spotify:      spotify,
		engine:       engine,
		playlistList: playlists,
		methodList:   methods,
		entryList:    list.New(nil, list.NewDefaultDelegate(), 0, 0),
		spinner:      s,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init initializes the TUI by fetching playlists from Spotify.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		m.methodList.SetSize(msg.Width-4, msg.Height-8)
		m.entryList.SetSize(msg.Width-4, msg.Height-10)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case MethodView:
			return m.handleMethodKeys(msg)
		case RunView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != RunView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsFetched)
		if data.err != nil {
			m.err = data.err
			return m, tea.Quit
		}
		items := make([]list.Item, len(data.playlists))
		for i, pl := range data.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		return m, m.playlistList.SetItems(items)

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, waitForProgress(m.progressChan, m.doneChan)

	case MsgOptimizeComplete:
		data := msg.data.(optimizeComplete)
		m.progressChan, m.doneChan = nil, nil
		m.result = data.result
		m.err = data.err
		m.applied = false
		if data.result != nil {
			items := make([]list.Item, len(data.result.Entries))
			for i, e := range data.result.Entries {
				items[i] = entryItem{entry: e}
			}
			m.entryList.Title = fmt.Sprintf("%s (%s)", data.result.Playlist.Name, data.result.Method)
			m.view = ResultView
			return m, m.entryList.SetItems(items)
		}
		m.view = ResultView
		return m, nil

	case MsgApplyComplete:
		m.progressChan, m.doneChan = nil, nil
		if err, ok := msg.data.(error); ok && err != nil {
			m.err = err
		} else {
			m.applied = true
		}
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case MethodView:
		return m.renderMethods()
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit) && !m.playlistList.SettingFilter():
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			m.selected = &pl.playlist
			m.view = MethodView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleMethodKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.methodList.SelectedItem().(methodItem); ok {
			m.method = item.method
			m.view = RunView
			m.progress = tasks.ProgressUpdate{}
			return m, tea.Batch(m.spinner.Tick, m.startOptimize())
		}
	}

	var cmd tea.Cmd
	m.methodList, cmd = m.methodList.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = PlaylistListView
		m.selected = nil
		m.result = nil
		m.applied = false
		m.err = nil
		return m, nil
	case key.Matches(msg, m.keys.apply):
		if m.err != nil || m.result == nil || !m.result.Solved() || m.applied {
			return m, nil
		}
		m.view = RunView
		m.progress = tasks.ProgressUpdate{}
		return m, tea.Batch(m.spinner.Tick, m.startApply())
	}

	var cmd tea.Cmd
	m.entryList, cmd = m.entryList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case MethodView:
		m.methodList, cmd = m.methodList.Update(msg)
	case ResultView:
		m.entryList, cmd = m.entryList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.spotify.GetPlaylists(m.ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

// startOptimize runs the selected method in the background and returns the command that relays its progress.
func (m *Model) startOptimize() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan Msg, 1)
	m.progressChan, m.doneChan = progress, done

	playlistID, opts := m.selected.ID, tasks.OptimizeOpts{Method: m.method}
	go func() {
		result, err := m.engine.Optimize(m.ctx, progress, playlistID, opts)
		close(progress)
		done <- optimizeCompleteMsg(result, err)
	}()

	return waitForProgress(progress, done)
}

func (m *Model) startApply() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan Msg, 1)
	m.progressChan, m.doneChan = progress, done

	result := m.result
	go func() {
		err := m.engine.Apply(m.ctx, progress, result)
		close(progress)
		done <- applyCompleteMsg(err)
	}()

	return waitForProgress(progress, done)
}

// waitForProgress relays one update, or the final message once the progress channel is closed.
func waitForProgress(progress <-chan tasks.ProgressUpdate, done <-chan Msg) tea.Cmd {
	return func() tea.Msg {
		if update, ok := <-progress; ok {
			return progressUpdateMsg(update)
		}
		return <-done
	}
}

func (m *Model) renderPlaylistList() string {
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), m.help.ShortHelpView(m.keys.forView(m.view, m.applied)))
}

func (m *Model) renderMethods() string {
	title := styles.title.Render(fmt.Sprintf("Reorder '%s'", m.selected.Name))
	return fmt.Sprintf("%s\n%s\n\n%s", title, m.methodList.View(), m.help.ShortHelpView(m.keys.forView(m.view, m.applied)))
}

func (m *Model) renderRun() string {
	title := styles.title.Render("Working")

	var phase string
	switch m.progress.Phase {
	case tasks.FetchPlaylist:
		phase = "Fetching playlist..."
	case tasks.ResolveFeatures:
		phase = fmt.Sprintf("Resolving audio features (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.SequenceTracks:
		phase = "Searching for the smoothest order..."
	case tasks.ClusterTracks:
		phase = "Clustering tracks..."
	case tasks.ReorderPlaylist:
		phase = "Writing order to Spotify..."
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s %s\n%s", title, m.spinner.View(), phase, styles.help.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Failed: %v\n\nPress r to restart, q to quit", m.err))
	}
	if m.result == nil {
		return styles.err.Render("No result available\n\nPress r to restart, q to quit")
	}
	if !m.result.Solved() {
		return styles.warn.Render("No ordering found for this playlist.\n\nPress r to restart, q to quit")
	}

	summary := styles.ok.Render(fmt.Sprintf("✓ %d tracks, transition cost %s", len(m.result.Entries), formatter.FormatCost(m.result.Cost)))
	if len(m.result.Dropped) > 0 {
		summary += "\n" + styles.warn.Render(fmt.Sprintf("%d tracks dropped without audio features", len(m.result.Dropped)))
	}
	if m.applied {
		summary += "\n" + styles.ok.Render("✓ Order applied to Spotify")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", m.entryList.View(), summary, m.help.ShortHelpView(m.keys.forView(m.view, m.applied)))
}
