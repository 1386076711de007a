package ui

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/tasks"
	tu "github.com/desertthunder/setlist/internal/testing"
)

func newTestModel(t *testing.T, srv *tu.MockService) *Model {
	t.Helper()

	logger := log.New(io.Discard)
	provider := tasks.NewSpotifyFeatureProvider(srv, tasks.ProviderOpts{Workers: 2, RateLimit: 1000, Logger: logger})
	engine, err := tasks.NewMixEngine(srv, provider, tasks.EngineOpts{Logger: logger})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := NewModel(context.Background(), srv, engine)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

// operationCmd pulls the progress relay out of the batch returned when an operation starts.
func operationCmd(t *testing.T, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command, got nil")
	}
	batch, ok := cmd().(tea.BatchMsg)
	if !ok || len(batch) != 2 {
		t.Fatalf("expected a batch of spinner tick and relay, got %#v", batch)
	}
	return batch[1]
}

// drain feeds relayed messages back into the model until the operation completes.
func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for range 100 {
		msg := cmd()
		_, cmd = m.Update(msg)
		if msg, ok := msg.(Msg); ok && (msg.kind == MsgOptimizeComplete || msg.kind == MsgApplyComplete) {
			return
		}
		if cmd == nil {
			t.Fatal("relay stopped before the operation completed")
		}
	}
	t.Fatal("operation did not complete")
}

func TestModel(t *testing.T) {
	t.Run("optimize and apply", func(t *testing.T) {
		srv := tu.NewMockService("p1", tu.ClubRecord("a", 100), tu.ClubRecord("b", 140), tu.ClubRecord("c", 120))
		m := newTestModel(t, srv)

		m.Update(m.Init()())
		if got := len(m.playlistList.Items()); got != 1 {
			t.Fatalf("expected 1 playlist, got %d", got)
		}

		m.Update(keyPress("enter"))
		if m.view != MethodView {
			t.Fatalf("expected MethodView, got %d", m.view)
		}
		if m.selected == nil || m.selected.ID != "p1" {
			t.Fatalf("expected p1 selected, got %+v", m.selected)
		}

		_, cmd := m.Update(keyPress("enter"))
		if m.view != RunView {
			t.Fatalf("expected RunView, got %d", m.view)
		}
		drain(t, m, operationCmd(t, cmd))

		if m.view != ResultView {
			t.Fatalf("expected ResultView, got %d", m.view)
		}
		if m.err != nil {
			t.Fatalf("unexpected error: %v", m.err)
		}
		if m.method != tasks.MethodBeam {
			t.Errorf("expected beam method, got %q", m.method)
		}

		var ids []string
		for _, e := range m.result.Entries {
			ids = append(ids, e.TrackID)
		}
		if want := []string{"a", "c", "b"}; !reflect.DeepEqual(ids, want) {
			t.Errorf("expected order %v, got %v", want, ids)
		}
		if view := m.View(); !strings.Contains(view, "transition cost 20.00") {
			t.Errorf("expected cost in view, got %q", view)
		}

		_, cmd = m.Update(keyPress("a"))
		drain(t, m, operationCmd(t, cmd))

		if !m.applied {
			t.Fatalf("expected order applied, err: %v", m.err)
		}
		want := []string{"spotify:track:a", "spotify:track:c", "spotify:track:b"}
		if got := srv.Replaced["p1"]; !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v written, got %v", want, got)
		}
		if view := m.View(); !strings.Contains(view, "Order applied") {
			t.Errorf("expected applied notice, got %q", view)
		}

		if _, cmd := m.Update(keyPress("a")); cmd != nil {
			t.Error("expected apply to be ignored once applied")
		}
	})

	t.Run("playlist fetch error", func(t *testing.T) {
		srv := tu.NewMockService("p1")
		srv.Err = errors.New("boom")
		m := newTestModel(t, srv)

		m.Update(m.Init()())
		if m.err == nil {
			t.Fatal("expected error, got nil")
		}
		if view := m.View(); !strings.Contains(view, "boom") {
			t.Errorf("expected error in view, got %q", view)
		}
	})

	t.Run("back from method view", func(t *testing.T) {
		m := newTestModel(t, tu.NewMockService("p1", tu.ClubRecord("a", 120)))
		m.Update(m.Init()())
		m.Update(keyPress("enter"))
		m.Update(keyPress("esc"))
		if m.view != PlaylistListView {
			t.Errorf("expected PlaylistListView, got %d", m.view)
		}
	})

	t.Run("unsolved result cannot be applied", func(t *testing.T) {
		srv := tu.NewMockService("p1", tu.ClubRecord("a", 120))
		srv.Durations = map[string]int{"a": 0}
		m := newTestModel(t, srv)
		m.selected = &models.Playlist{ID: "p1"}
		m.method = tasks.MethodBeam
		drain(t, m, m.startOptimize())

		if m.result == nil || m.result.Solved() {
			t.Fatalf("expected unsolved result, got %+v", m.result)
		}
		if view := m.View(); !strings.Contains(view, "No ordering found") {
			t.Errorf("expected unsolved notice, got %q", view)
		}
		if _, cmd := m.Update(keyPress("a")); cmd != nil {
			t.Error("expected apply to be ignored")
		}
	})

	t.Run("restart clears result", func(t *testing.T) {
		m := newTestModel(t, tu.NewMockService("p1", tu.ClubRecord("a", 120)))
		m.selected = &models.Playlist{ID: "p1"}
		m.method = tasks.MethodCluster
		drain(t, m, m.startOptimize())

		m.Update(keyPress("r"))
		if m.view != PlaylistListView {
			t.Errorf("expected PlaylistListView, got %d", m.view)
		}
		if m.result != nil || m.selected != nil {
			t.Error("expected result and selection cleared")
		}
	})
}

func TestKeyMap(t *testing.T) {
	keys := newKeyMap()

	tc := []struct {
		name    string
		view    ViewState
		applied bool
		want    []string
	}{
		{"playlists", PlaylistListView, false, []string{"enter", "q"}},
		{"methods", MethodView, false, []string{"enter", "esc", "q"}},
		{"running", RunView, false, []string{"q"}},
		{"result", ResultView, false, []string{"a", "r", "q"}},
		{"applied result", ResultView, true, []string{"r", "q"}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, b := range keys.forView(tt.view, tt.applied) {
				got = append(got, b.Help().Key)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestKeyLabel(t *testing.T) {
	if got := keyLabel(9, models.Minor); !strings.Contains(got, "Am") {
		t.Errorf("expected label to contain Am, got %q", got)
	}
	if got := keyLabel(-1, models.Major); got != "?" {
		t.Errorf("expected ?, got %q", got)
	}
}
