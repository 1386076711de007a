package tasks

import (
	"fmt"

	"github.com/desertthunder/setlist/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylist Phase = iota
	ResolveFeatures
	SequenceTracks
	ClusterTracks
	MergePlaylists
	ComparePlaylists
	ReorderPlaylist
	RecordRun
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylist:
		return "fetch_playlist"
	case ResolveFeatures:
		return "resolve_features"
	case SequenceTracks:
		return "sequence_tracks"
	case ClusterTracks:
		return "cluster_tracks"
	case MergePlaylists:
		return "merge_playlists"
	case ComparePlaylists:
		return "compare_playlists"
	case ReorderPlaylist:
		return "reorder_playlist"
	case RecordRun:
		return "record_run"
	default:
		return ""
	}
}

func fetchPlaylistUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching playlist %s...", id),
	}
}

func foundPlaylistUpdate(step, total int, export *models.PlaylistExport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", export.Playlist.Name, len(export.Tracks)),
		Data:    export,
	}
}

func resolveFeaturesUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveFeatures,
		Step:    0,
		Total:   count,
		Message: fmt.Sprintf("Resolving audio features for %d tracks...", count),
	}
}

func resolvedFeaturesUpdate(resolved, total int, failures []ResolveFailure) ProgressUpdate {
	msg := fmt.Sprintf("Resolved %d/%d tracks", resolved, total)
	if len(failures) > 0 {
		msg += fmt.Sprintf(" (%d dropped)", len(failures))
	}
	return ProgressUpdate{
		Phase:   ResolveFeatures,
		Step:    resolved,
		Total:   total,
		Message: msg,
		Data:    failures,
	}
}

func sequenceUpdate(count, width int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SequenceTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Searching orderings of %d tracks (beam width %d)...", count, width),
	}
}

func clusterUpdate(count, clusters int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ClusterTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Grouping %d tracks into up to %d clusters...", count, clusters),
	}
}

func mergeUpdate(a, b int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MergePlaylists,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Merging %d and %d tracks...", a, b),
	}
}

func compareUpdate(a, b int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ComparePlaylists,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Scoring %d x %d track pairs...", a, b),
	}
}

func reorderUpdate(id string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReorderPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Writing %d tracks to playlist %s...", count, id),
	}
}

func recordRunUpdate(method Method) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RecordRun,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Saving %s run...", method),
	}
}
