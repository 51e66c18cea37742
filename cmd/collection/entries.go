package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/iliyamo/movieflix/internal/client"
	"github.com/iliyamo/movieflix/internal/ui"
)

func listCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List your entries, newest first",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Load every page instead of the first"},
			themeFlag(),
		},
		Action: r.List,
	}
}

func showCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show every field of one entry",
		Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
		Flags:     []cli.Flag{themeFlag()},
		Action:    r.Show,
	}
}

func addCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "add",
		Usage:  "Add a movie or TV show",
		Flags:  entryFlags(),
		Action: r.Add,
	}
}

func editCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Change fields of an entry; unset flags keep their value",
		Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
		Flags: append(entryFlags(),
			&cli.BoolFlag{Name: "no-budget", Usage: "Clear the budget"},
		),
		Action: r.Edit,
	}
}

func deleteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete an entry",
		Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
		Action:    r.Delete,
	}
}

func entryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Usage: "Title"},
		&cli.StringFlag{Name: "type", Usage: "movie or tv_show", Value: "movie"},
		&cli.StringFlag{Name: "genre", Usage: "Genre"},
		&cli.IntFlag{Name: "year", Usage: "Release year"},
		&cli.FloatFlag{Name: "rating", Usage: "Your rating, 0 to 10"},
		&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Notes"},
		&cli.StringFlag{Name: "director", Usage: "Director or showrunner"},
		&cli.IntFlag{Name: "duration", Usage: "Runtime in minutes"},
		&cli.StringFlag{Name: "image", Usage: "Poster URL (empty clears)"},
		&cli.FloatFlag{Name: "budget", Usage: "Production budget"},
		&cli.StringFlag{Name: "location", Usage: "Where you watched it (empty clears)"},
	}
}

// applyEntryFlags copies every flag the user set onto in.
func applyEntryFlags(cmd *cli.Command, in *client.EntryInput) {
	if cmd.IsSet("title") {
		in.Title = cmd.String("title")
	}
	if cmd.IsSet("type") || in.Type == "" {
		in.Type = cmd.String("type")
	}
	if cmd.IsSet("genre") {
		in.Genre = cmd.String("genre")
	}
	if cmd.IsSet("year") {
		in.ReleaseYear = cmd.Int("year")
	}
	if cmd.IsSet("rating") {
		in.Rating = cmd.Float("rating")
	}
	if cmd.IsSet("description") {
		in.Description = cmd.String("description")
	}
	if cmd.IsSet("director") {
		in.Director = cmd.String("director")
	}
	if cmd.IsSet("duration") {
		in.Duration = cmd.Int("duration")
	}
	if cmd.IsSet("image") {
		in.ImageURL = optional(cmd.String("image"))
	}
	if cmd.IsSet("budget") {
		b := cmd.Float("budget")
		in.Budget = &b
	}
	if cmd.Bool("no-budget") {
		in.Budget = nil
	}
	if cmd.IsSet("location") {
		in.Location = optional(cmd.String("location"))
	}
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func entryID(cmd *cli.Command) (uint64, error) {
	raw := cmd.StringArg("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid entry id %q", raw)
	}
	return id, nil
}

// List prints the first page, or every page with --all.
func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	th, err := r.theme(cmd)
	if err != nil {
		return err
	}
	c, _, err := r.session(ctx, cmd)
	if err != nil {
		return err
	}
	ctl := r.controller(c)
	defer ctl.Close()

	ctl.SessionReady()
	if cmd.Bool("all") {
		err = ctl.LoadAll(ctx)
	} else {
		err = ctl.Wait(ctx)
	}
	if err != nil {
		return describe(err)
	}
	s := ctl.State()
	if s.Err != nil {
		return describe(s.Err)
	}
	if err := r.println(ui.Entries(th, s.Entries)); err != nil {
		return err
	}
	return r.println(ui.Footer(th, s))
}

// Show prints one entry in full.
func (r *Runner) Show(ctx context.Context, cmd *cli.Command) error {
	th, err := r.theme(cmd)
	if err != nil {
		return err
	}
	id, err := entryID(cmd)
	if err != nil {
		return err
	}
	c, _, err := r.session(ctx, cmd)
	if err != nil {
		return err
	}
	e, err := c.GetEntry(ctx, id)
	if err != nil {
		return describe(err)
	}
	return r.println(ui.Entry(th, *e))
}

// Add creates an entry from the flags.
func (r *Runner) Add(ctx context.Context, cmd *cli.Command) error {
	c, _, err := r.session(ctx, cmd)
	if err != nil {
		return err
	}
	var in client.EntryInput
	applyEntryFlags(cmd, &in)

	ctl := r.controller(c)
	defer ctl.Close()
	e, err := ctl.Create(ctx, in)
	if err != nil {
		return describe(err)
	}
	return r.println(ui.Success(ui.Dark, fmt.Sprintf("Added #%d %s", e.ID, e.Title)))
}

// Edit loads an entry, applies the flags that were set and saves it.
func (r *Runner) Edit(ctx context.Context, cmd *cli.Command) error {
	id, err := entryID(cmd)
	if err != nil {
		return err
	}
	c, _, err := r.session(ctx, cmd)
	if err != nil {
		return err
	}
	cur, err := c.GetEntry(ctx, id)
	if err != nil {
		return describe(err)
	}
	in := client.InputFrom(*cur)
	applyEntryFlags(cmd, &in)

	ctl := r.controller(c)
	defer ctl.Close()
	e, err := ctl.Update(ctx, id, in)
	if err != nil {
		return describe(err)
	}
	return r.println(ui.Success(ui.Dark, fmt.Sprintf("Updated #%d %s", e.ID, e.Title)))
}

// Delete removes an entry.
func (r *Runner) Delete(ctx context.Context, cmd *cli.Command) error {
	id, err := entryID(cmd)
	if err != nil {
		return err
	}
	c, _, err := r.session(ctx, cmd)
	if err != nil {
		return err
	}
	ctl := r.controller(c)
	defer ctl.Close()
	e, err := ctl.Delete(ctx, id)
	if err != nil {
		return describe(err)
	}
	return r.println(ui.Success(ui.Dark, fmt.Sprintf("Deleted #%d %s", e.ID, e.Title)))
}
