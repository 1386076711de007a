package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// browserCommands maps GOOS to the launcher that hands a URL to the desktop's default browser.
var browserCommands = map[string][]string{
	"darwin":  {"open"},
	"linux":   {"xdg-open"},
	"freebsd": {"xdg-open"},
	"openbsd": {"xdg-open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

// BrowserCommand returns the command that opens url on goos.
func BrowserCommand(goos, url string) (*exec.Cmd, error) {
	launcher, ok := browserCommands[goos]
	if !ok {
		return nil, fmt.Errorf("%w: no browser launcher for %s", ErrNotImplemented, goos)
	}
	args := append(append([]string{}, launcher[1:]...), url)
	return exec.Command(launcher[0], args...), nil
}

// OpenBrowser starts the default browser on the Spotify authorization page without waiting for it to exit.
func OpenBrowser(url string) error {
	cmd, err := BrowserCommand(runtime.GOOS, url)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
