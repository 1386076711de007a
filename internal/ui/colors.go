package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/setlist/internal/formatter"
	"github.com/desertthunder/setlist/internal/mixing"
	"github.com/desertthunder/setlist/internal/models"
)

var styles = newTheme("#1DB954", "#04B575", "#FF5F5F", "#FFA500", "#626262")

// theme holds the styles every view draws with.
type theme struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func newTheme(title, ok, err, warn, help string) theme {
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
	return theme{
		title: fg(title).Bold(true).MarginBottom(1),
		ok:    fg(ok).Bold(true),
		err:   fg(err).Bold(true),
		warn:  fg(warn),
		help:  fg(help).Italic(true),
	}
}

// wheel colors the circle of fifths so that neighbouring keys, the ones that mix, get neighbouring hues.
var wheel = [12]lipgloss.Color{
	"#FF5F5F", "#FF875F", "#FFAF5F", "#FFD75F", "#D7FF5F", "#87FF5F",
	"#5FFF87", "#5FFFD7", "#5FD7FF", "#5F87FF", "#875FFF", "#D75FFF",
}

// keyLabel renders a key name in its wheel color. Minor keys are drawn faint.
func keyLabel(key, mode int) string {
	if key < 0 || key > 11 {
		return formatter.KeyName(key, mode)
	}
	s := lipgloss.NewStyle().Foreground(wheel[mixing.FifthsPosition(key)])
	if mode == models.Minor {
		s = s.Faint(true)
	}
	return s.Render(formatter.KeyName(key, mode))
}
