package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/iliyamo/movieflix/internal/collection"
	"github.com/iliyamo/movieflix/internal/model"
)

func dune() model.Entry {
	budget := 165000000.0
	loc := "Cinema"
	return model.Entry{
		ID:          7,
		Title:       "Dune",
		Type:        model.EntryTypeMovie,
		Genre:       "Sci-Fi",
		ReleaseYear: 2021,
		Rating:      8.5,
		Description: "Arrakis",
		Director:    "Denis Villeneuve",
		Budget:      &budget,
		Duration:    155,
		Location:    &loc,
	}
}

func TestThemeByName(t *testing.T) {
	for name, want := range map[string]string{"": "dark", "dark": "dark", "Light": "light"} {
		th, err := ThemeByName(name)
		if err != nil || th.Name != want {
			t.Errorf("ThemeByName(%q) = %q, %v", name, th.Name, err)
		}
	}
	if _, err := ThemeByName("solarized"); err == nil {
		t.Error("expected error for unknown theme")
	}
}

func TestEntries(t *testing.T) {
	show := dune()
	show.ID = 8
	show.Title = strings.Repeat("Long title ", 10)
	show.Type = model.EntryTypeTVShow

	for _, th := range []Theme{Dark, Light} {
		t.Run(th.Name, func(t *testing.T) {
			out := Entries(th, []model.Entry{dune(), show})
			for _, want := range []string{"TITLE", "Dune", "Movie", "TV Show", "2021", "8.5/10", "Denis Villeneuve", "2h 35m", "…"} {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
			if strings.Contains(out, show.Title) {
				t.Error("long title not truncated")
			}
		})
	}

	if out := Entries(Dark, nil); !strings.Contains(out, "No entries yet") {
		t.Errorf("empty list = %q", out)
	}
}

func TestEntry(t *testing.T) {
	out := Entry(Light, dune())
	for _, want := range []string{"#7 Dune", "$165,000,000", "Cinema", "Arrakis", "Poster"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFooter(t *testing.T) {
	cases := []struct {
		state collection.State
		want  string
	}{
		{collection.State{Phase: collection.Loading}, "Loading"},
		{collection.State{Phase: collection.Exhausted, Entries: make([]model.Entry, 1)}, "1 entry"},
		{collection.State{Phase: collection.Idle, Entries: make([]model.Entry, 20)}, "More available"},
		{collection.State{Err: errors.New("offline")}, "Failed to load entries: offline"},
	}
	for _, tc := range cases {
		if got := Footer(Dark, tc.state); !strings.Contains(got, tc.want) {
			t.Errorf("Footer(%+v) = %q, want %q", tc.state, got, tc.want)
		}
	}
}

func TestFormatters(t *testing.T) {
	for min, want := range map[int]string{1: "1m", 59: "59m", 60: "1h", 155: "2h 35m", 61: "1h 01m"} {
		if got := Duration(min); got != want {
			t.Errorf("Duration(%d) = %q, want %q", min, got, want)
		}
	}
	for _, tc := range []struct {
		in   float64
		want string
	}{{0, "$0"}, {999, "$999"}, {1000, "$1,000"}, {165000000, "$165,000,000"}} {
		v := tc.in
		if got := Budget(&v); got != tc.want {
			t.Errorf("Budget(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if Budget(nil) != "—" {
		t.Error("nil budget should render a dash")
	}
	if Rating(10) != "10.0/10" {
		t.Errorf("Rating(10) = %q", Rating(10))
	}
}
