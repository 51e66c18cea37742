// Package ui renders entries for the terminal with lipgloss.  There is one
// renderer; the look comes from the Theme passed in.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is a named set of styles.
type Theme struct {
	Name   string
	Title  lipgloss.Style
	Header lipgloss.Style
	Cell   lipgloss.Style
	AltRow lipgloss.Style
	Border lipgloss.Style
	Accent lipgloss.Style
	Muted  lipgloss.Style
	Error  lipgloss.Style
	OK     lipgloss.Style
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}

func newTheme(name, title, header, text, alt, border, accent, muted, errc, ok string) Theme {
	return Theme{
		Name:   name,
		Title:  newBold(title).MarginBottom(1),
		Header: newBold(header).Padding(0, 1),
		Cell:   newStyle(text).Padding(0, 1),
		AltRow: newStyle(alt).Padding(0, 1),
		Border: newStyle(border),
		Accent: newBold(accent),
		Muted:  newStyle(muted).Italic(true),
		Error:  newBold(errc),
		OK:     newBold(ok),
	}
}

// Dark suits terminals with a dark background.
var Dark = newTheme("dark", "#7D56F4", "#FAFAFA", "#DDDDDD", "#A8A8A8", "#626262", "#FFB454", "#8A8A8A", "#FF5F87", "#04B575")

// Light suits terminals with a light background.
var Light = newTheme("light", "#5A3FC0", "#1A1A1A", "#262626", "#4E4E4E", "#B2B2B2", "#AF5F00", "#767676", "#D70000", "#008700")

// Themes lists the built-in themes by name.
var Themes = map[string]Theme{Dark.Name: Dark, Light.Name: Light}

// ThemeByName looks up a built-in theme.  The empty name selects Dark.
func ThemeByName(name string) (Theme, error) {
	if name == "" {
		return Dark, nil
	}
	th, ok := Themes[strings.ToLower(name)]
	if !ok {
		return Theme{}, fmt.Errorf("unknown theme %q (want dark or light)", name)
	}
	return th, nil
}
