// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through one optimization:
//  1. [PlaylistListView] : Browse and select Spotify playlists
//  2. [MethodView] : Pick beam search or clustering
//  3. [RunView] : Monitor progress while features resolve and tracks are ordered
//  4. [ResultView] : Browse the ordered tracks and optionally write the order back to Spotify
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the MixEngine while the result arrives on a separate channel once the
// operation returns.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, a, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
