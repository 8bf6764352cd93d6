package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const (
	colorError   = 0xff5f5f
	colorSuccess = 0x5fd75f
	colorAccent  = 0xff5fd7
)

var (
	boldStyle  = lipgloss.NewStyle().Bold(true)
	faintStyle = lipgloss.NewStyle().Faint(true)
)

// Colorize applies the given color to the text using lipgloss.
// color is a 24-bit RGB value.
func Colorize(text string, color int) string {
	style := lipgloss.NewStyle().Foreground(colorOf(color))
	return style.Render(text)
}

func colorOf(color int) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%06x", color&0xffffff))
}

// humanBytes formats n with a binary unit suffix.
func humanBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
