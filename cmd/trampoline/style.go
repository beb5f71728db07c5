package main

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// styles renders output for one writer; plain when it is not a terminal.
type styles struct {
	title, fn, typ, result, err func(...string) string
}

func stylesFor(w io.Writer) styles {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return styles{
			title:  titleStyle.Render,
			fn:     funcStyle.Render,
			typ:    typeStyle.Render,
			result: resultStyle.Render,
			err:    errorStyle.Render,
		}
	}
	return styles{title: plain, fn: plain, typ: plain, result: plain, err: plain}
}

func plain(strs ...string) string {
	return strings.Join(strs, " ")
}
