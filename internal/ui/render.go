package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/iliyamo/movieflix/internal/collection"
	"github.com/iliyamo/movieflix/internal/model"
)

const maxTitleWidth = 40

var typeLabels = map[model.EntryType]string{
	model.EntryTypeMovie:  "Movie",
	model.EntryTypeTVShow: "TV Show",
}

// TypeLabel returns the display label of t.
func TypeLabel(t model.EntryType) string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return string(t)
}

// Entries renders entries as a table.  An empty list renders a hint.
func Entries(th Theme, entries []model.Entry) string {
	if len(entries) == 0 {
		return th.Muted.Render("No entries yet. Add one with `collection add`.")
	}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			strconv.FormatUint(e.ID, 10),
			truncate(e.Title, maxTitleWidth),
			TypeLabel(e.Type),
			e.Genre,
			strconv.Itoa(e.ReleaseYear),
			Rating(e.Rating),
			e.Director,
			Duration(e.Duration),
		}
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(th.Border).
		Headers("ID", "TITLE", "TYPE", "GENRE", "YEAR", "RATING", "DIRECTOR", "LENGTH").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return th.Header
			case col == 5:
				return th.Cell.Foreground(th.Accent.GetForeground())
			case row%2 == 1:
				return th.AltRow
			}
			return th.Cell
		})
	return t.String()
}

// Entry renders one entry with every field, for detail views.
func Entry(th Theme, e model.Entry) string {
	label := th.Header.Padding(0).Width(12)
	lines := []string{th.Title.Render(fmt.Sprintf("#%d %s", e.ID, e.Title))}
	add := func(k, v string) {
		lines = append(lines, label.Render(k)+" "+th.Cell.Padding(0).Render(v))
	}
	add("Type", TypeLabel(e.Type))
	add("Genre", e.Genre)
	add("Released", strconv.Itoa(e.ReleaseYear))
	add("Rating", Rating(e.Rating))
	add("Director", e.Director)
	add("Length", Duration(e.Duration))
	add("Budget", Budget(e.Budget))
	add("Location", orDash(e.Location))
	add("Poster", orDash(e.ImageURL))
	add("Notes", e.Description)
	return strings.Join(lines, "\n")
}

// Footer renders the pagination status under a list.
func Footer(th Theme, s collection.State) string {
	count := fmt.Sprintf("%d entries", len(s.Entries))
	if len(s.Entries) == 1 {
		count = "1 entry"
	}
	var status string
	switch {
	case s.Err != nil:
		status = th.Error.Render("Failed to load entries: " + s.Err.Error())
	case s.Phase == collection.Loading:
		status = th.Muted.Render("Loading…")
	case s.Phase == collection.Exhausted:
		status = th.Muted.Render("End of collection")
	default:
		status = th.Muted.Render("More available (use --all)")
	}
	return count + " · " + status
}

// Success renders a confirmation line.
func Success(th Theme, msg string) string { return th.OK.Render(msg) }

// Failure renders an error line.
func Failure(th Theme, msg string) string { return th.Error.Render(msg) }

// Rating formats a 0-10 rating with one decimal.
func Rating(r float64) string { return strconv.FormatFloat(r, 'f', 1, 64) + "/10" }

// Duration formats minutes as "2h 35m".
func Duration(min int) string {
	if min < 60 {
		return fmt.Sprintf("%dm", min)
	}
	if min%60 == 0 {
		return fmt.Sprintf("%dh", min/60)
	}
	return fmt.Sprintf("%dh %02dm", min/60, min%60)
}

// Budget formats an optional budget in whole units with thousands
// separators.
func Budget(b *float64) string {
	if b == nil {
		return "—"
	}
	s := strconv.FormatFloat(*b, 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-$" + string(out)
	}
	return "$" + string(out)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "—"
	}
	return *s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
