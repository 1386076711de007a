// package formatter renders sequencing results as plain text, CSV, Markdown or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/desertthunder/setlist/internal/tasks"
)

// Format selects an output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or a file extension such as ".md".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
	}
}

// FormatForPath infers the format from a file extension, defaulting to text.
func FormatForPath(path string) Format {
	f, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return FormatText
	}
	return f
}

var pitchNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// KeyName renders a pitch class and mode as e.g. "F#m" or "C".
func KeyName(key, mode int) string {
	if key < 0 || key > 11 {
		return "?"
	}
	if mode == models.Minor {
		return pitchNames[key] + "m"
	}
	return pitchNames[key]
}

// FormatDuration renders seconds as m:ss.
func FormatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatCost renders a transition cost to two decimals, or "n/a" when no order was produced.
func FormatCost(cost float64) string {
	if math.IsInf(cost, 0) || math.IsNaN(cost) {
		return "n/a"
	}
	return strconv.FormatFloat(cost, 'f', 2, 64)
}

// EntriesToCSV writes one row per entry with columns:
// Position, ID, URI, Title, Artist, Album, Key, Tempo, Energy, Danceability, Popularity, Cluster
func EntriesToCSV(entries []tasks.Entry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "URI", "Title", "Artist", "Album", "Key", "Tempo", "Energy", "Danceability", "Popularity", "Cluster"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range entries {
		cluster := ""
		if e.Cluster != nil {
			cluster = strconv.Itoa(*e.Cluster)
		}
		record := []string{
			strconv.Itoa(e.Position),
			e.TrackID,
			e.URI,
			e.TrackName,
			e.Artist,
			e.AlbumName,
			KeyName(e.Key, e.Mode),
			strconv.FormatFloat(e.Tempo, 'f', 1, 64),
			strconv.FormatFloat(e.Energy, 'f', 3, 64),
			strconv.FormatFloat(e.Danceability, 'f', 3, 64),
			strconv.Itoa(e.Popularity),
			cluster,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// EntriesToMarkdown renders a titled track list with the album cover of the opening track.
func EntriesToMarkdown(title string, entries []tasks.Entry, cost float64, dropped []tasks.ResolveFailure) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)

	if len(entries) > 0 && entries[0].AlbumCover != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", entries[0].AlbumCover)
	}

	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(entries))
	fmt.Fprintf(&buf, "**Transition cost**: %s\n\n", FormatCost(cost))

	buf.WriteString("## Tracks\n\n")
	buf.WriteString("| # | Artist | Title | Key | BPM |\n")
	buf.WriteString("|---|--------|-------|-----|-----|\n")
	for _, e := range entries {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %.0f |\n", e.Position, escapeCell(e.Artist), escapeCell(e.TrackName), KeyName(e.Key, e.Mode), e.Tempo)
	}

	if len(dropped) > 0 {
		buf.WriteString("\n## Dropped\n\n")
		for _, d := range dropped {
			fmt.Fprintf(&buf, "- `%s`: %s\n", d.TrackID, d.Reason)
		}
	}

	return buf.Bytes()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// EntriesToText renders a numbered track list with key and tempo.
func EntriesToText(title string, entries []tasks.Entry, cost float64, dropped []tasks.ResolveFailure) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", title)
	fmt.Fprintf(&buf, "Tracks: %d\n", len(entries))
	fmt.Fprintf(&buf, "Transition cost: %s\n\n", FormatCost(cost))

	for _, e := range entries {
		line := fmt.Sprintf("%3d. %s - %s [%s, %.0f BPM]", e.Position, e.Artist, e.TrackName, KeyName(e.Key, e.Mode), e.Tempo)
		if e.Cluster != nil {
			line += fmt.Sprintf(" (cluster %d)", *e.Cluster)
		}
		buf.WriteString(line + "\n")
	}

	if len(dropped) > 0 {
		fmt.Fprintf(&buf, "\nDropped %d tracks:\n", len(dropped))
		for _, d := range dropped {
			fmt.Fprintf(&buf, "  %s: %s\n", d.TrackID, d.Reason)
		}
	}

	return buf.Bytes()
}

// OptimizeResult renders r in the given format.
func OptimizeResult(r *tasks.OptimizeResult, format Format) ([]byte, error) {
	title := fmt.Sprintf("%s (%s)", r.Playlist.Name, r.Method)
	return render(format, r, title, r.Entries, r.Cost, r.Dropped)
}

// MergeResult renders r in the given format.
func MergeResult(r *tasks.MergeResult, format Format) ([]byte, error) {
	title := fmt.Sprintf("%s + %s", r.Source.Name, r.Dest.Name)
	return render(format, r, title, r.Entries, r.Cost, r.Dropped)
}

func render(format Format, v any, title string, entries []tasks.Entry, cost float64, dropped []tasks.ResolveFailure) ([]byte, error) {
	switch format {
	case FormatCSV:
		return EntriesToCSV(entries)
	case FormatMarkdown:
		return EntriesToMarkdown(title, entries, cost, dropped), nil
	case FormatJSON:
		return shared.MarshalJSON(v, true)
	default:
		return EntriesToText(title, entries, cost, dropped), nil
	}
}

// CompareResult renders a similarity summary. CSV is not supported.
func CompareResult(r *tasks.CompareResult, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(r, true)
	case FormatCSV:
		return nil, fmt.Errorf("%w: csv is not available for compare", shared.ErrInvalidFlag)
	case FormatMarkdown:
		return fmt.Appendf(nil, "# %s vs %s\n\n**Similarity**: %.2f%%\n", r.Source.Name, r.Dest.Name, r.Similarity), nil
	default:
		return fmt.Appendf(nil, "%s vs %s: %.2f%% similar\n", r.Source.Name, r.Dest.Name, r.Similarity), nil
	}
}

// RunsToText renders run history, newest first as given.
func RunsToText(runs []*models.Run) []byte {
	var buf bytes.Buffer
	if len(runs) == 0 {
		buf.WriteString("No runs recorded.\n")
		return buf.Bytes()
	}

	for _, r := range runs {
		fmt.Fprintf(&buf, "#%-4d %-8s %-24s %3d tracks  %2d dropped  cost %-8s %s\n",
			r.Sequence(), r.Method(), r.PlaylistID(), r.TrackCount(), r.DroppedCount(),
			FormatCost(r.Cost()), r.CreatedAt().Format("2006-01-02 15:04"))
	}
	return buf.Bytes()
}

// WriteFile writes data to path, creating parent directories as needed.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
