package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/tasks"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = methodItem{}
	_ list.Item = entryItem{}
)

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.playlist.TrackCount)
	if i.playlist.Description != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Description)
	}
	return desc
}

// methodItem is one ordering strategy offered after a playlist is picked.
type methodItem struct {
	method tasks.Method
	desc   string
}

func (i methodItem) FilterValue() string { return string(i.method) }
func (i methodItem) Title() string       { return string(i.method) }
func (i methodItem) Description() string { return i.desc }

func methodItems() []list.Item {
	return []list.Item{
		methodItem{tasks.MethodBeam, "Beam search for the cheapest path through every track"},
		methodItem{tasks.MethodCluster, "Group similar tracks, then order each group by tempo"},
	}
}

// entryItem wraps [tasks.Entry] to implement [list.Item].
type entryItem struct {
	entry tasks.Entry
}

func (i entryItem) FilterValue() string { return i.entry.TrackName }
func (i entryItem) Title() string {
	return fmt.Sprintf("%d. %s", i.entry.Position, i.entry.TrackName)
}
func (i entryItem) Description() string {
	desc := fmt.Sprintf("%s • %s • %.0f BPM", i.entry.Artist, keyLabel(i.entry.Key, i.entry.Mode), i.entry.Tempo)
	if i.entry.Cluster != nil {
		desc = fmt.Sprintf("%s • cluster %d", desc, *i.entry.Cluster)
	}
	return desc
}
