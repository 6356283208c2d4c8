package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/gmx/internal/tasks"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title   lipgloss.Style
	passed  lipgloss.Style
	failed  lipgloss.Style
	skipped lipgloss.Style
	help    lipgloss.Style
}

// NewPalette builds a palette from title, pass, fail, skip and muted colors.
func NewPalette(t, p, f, s, m string) *Palette {
	return &Palette{
		title:   NewBold(t).MarginBottom(1),
		passed:  NewBold(p),
		failed:  NewBold(f),
		skipped: NewStyle(s),
		help:    NewEm(m),
	}
}

// Outcome returns the style used for results with outcome o.
func (p *Palette) Outcome(o tasks.Outcome) lipgloss.Style {
	switch o {
	case tasks.Passed:
		return p.passed
	case tasks.Failed:
		return p.failed
	default:
		return p.skipped
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
