// Package tui renders aliasync's terminal output and asks for run approval.
package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Palette
var (
	ColorAccent = lipgloss.Color("#A8D8EA")
	ColorDeep   = lipgloss.Color("#596E79")
	ColorAlert  = lipgloss.Color("#FF6B6B")
	ColorGood   = lipgloss.Color("#4ECDC4")
	ColorWarn   = lipgloss.Color("#FFE66D")
	ColorMuted  = lipgloss.Color("#6c757d")
)

// Styles
var (
	StyleTitle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(ColorDeep).
			Padding(0, 1)

	StyleGood  = lipgloss.NewStyle().Foreground(ColorGood).Bold(true)
	StyleBad   = lipgloss.NewStyle().Foreground(ColorAlert).Bold(true)
	StyleWarn  = lipgloss.NewStyle().Foreground(ColorWarn).Bold(true)
	StyleMuted = lipgloss.NewStyle().Foreground(ColorMuted)

	StyleDiffAdd    = lipgloss.NewStyle().Foreground(ColorGood)
	StyleDiffRemove = lipgloss.NewStyle().Foreground(ColorAlert)
	StyleDiffHunk   = lipgloss.NewStyle().Foreground(ColorDeep)

	StyleTableHeader = lipgloss.NewStyle().
				Foreground(ColorDeep).
				Bold(true).
				Padding(0, 1)

	StyleTableRow = lipgloss.NewStyle().
			Padding(0, 1)
)

func SuccessMsg(format string, a ...any) string {
	return StyleGood.Render("✓") + " " + fmt.Sprintf(format, a...)
}

func WarnMsg(format string, a ...any) string {
	return StyleWarn.Render("!") + " " + fmt.Sprintf(format, a...)
}

func ErrorMsg(format string, a ...any) string {
	return StyleBad.Render("✗") + " " + fmt.Sprintf(format, a...)
}

func InfoMsg(format string, a ...any) string {
	return StyleTitle.Render("●") + " " + fmt.Sprintf(format, a...)
}

// Table renders rows under headers with rounded borders.
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorDeep)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return StyleTableHeader
			}
			return StyleTableRow
		}).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}
