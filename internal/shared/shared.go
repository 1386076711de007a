// package shared defines shared helpers
package shared

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewFileLogger creates a [log.Logger] appending to the file at path, creating parent directories as needed.
func NewFileLogger(path string) (*log.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return NewLogger(f), nil
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// GenerateState returns a random URL-safe OAuth state value.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// MarshalJSON encodes v, indented when pretty is set.
func MarshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// ParsePlaylistID extracts a playlist ID from a share link, a spotify:playlist: URI, or a bare ID.
//
//	https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc -> 37i9dQZF1DXcBWIGoYBM5M
func ParsePlaylistID(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", ErrMissingArgument
	}

	if rest, ok := strings.CutPrefix(link, "spotify:playlist:"); ok {
		return validPlaylistID(rest)
	}

	if !strings.Contains(link, "/") {
		return validPlaylistID(link)
	}

	u, err := url.Parse(link)
	if err != nil {
		return "", ErrInvalidPlaylistLink
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "playlist" {
			return validPlaylistID(parts[i+1])
		}
	}
	return "", ErrInvalidPlaylistLink
}

func validPlaylistID(id string) (string, error) {
	if id, _, _ = strings.Cut(id, "?"); id == "" {
		return "", ErrInvalidPlaylistLink
	}
	for _, r := range id {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return "", ErrInvalidPlaylistLink
		}
	}
	return id, nil
}
