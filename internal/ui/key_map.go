package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	enter   key.Binding
	back    key.Binding
	apply   key.Binding
	restart key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		apply:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "apply order")),
		restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// forView returns the bindings shown in the help line of view.
// Apply is hidden once the order has been written.
func (k keyMap) forView(view ViewState, applied bool) []key.Binding {
	switch view {
	case PlaylistListView:
		return []key.Binding{k.enter, k.quit}
	case MethodView:
		return []key.Binding{k.enter, k.back, k.quit}
	case ResultView:
		if applied {
			return []key.Binding{k.restart, k.quit}
		}
		return []key.Binding{k.apply, k.restart, k.quit}
	default:
		return []key.Binding{k.quit}
	}
}
