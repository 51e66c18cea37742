package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/iliyamo/movieflix/internal/client"
	"github.com/iliyamo/movieflix/internal/collection"
	"github.com/iliyamo/movieflix/internal/ui"
)

// Runner holds the dependencies of every command and provides one method
// per command action.
type Runner struct {
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	now        func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a Runner, filling in defaults for nil options.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Runner{
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		now:        time.Now,
	}
}

// App builds the root command.
func (r *Runner) App() *cli.Command {
	return &cli.Command{
		Name:      "collection",
		Usage:     "Track the movies and TV shows you have watched",
		Writer:    r.output,
		ErrWriter: r.output,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "MovieFlix API base URL",
				Value:   client.DefaultBaseURL,
				Sources: cli.EnvVars("MOVIEFLIX_URL"),
			},
			&cli.StringFlag{
				Name:    "credentials",
				Usage:   "Path to the saved session",
				Value:   DefaultCredentialsPath(),
				Sources: cli.EnvVars("MOVIEFLIX_CREDENTIALS"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log requests and state changes",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				r.logger.SetLevel(log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		signupCommand, loginCommand, logoutCommand, whoamiCommand,
		listCommand, showCommand, addCommand, editCommand, deleteCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

func (r *Runner) newClient(cmd *cli.Command) *client.Client {
	return client.New(cmd.String("server"), r.httpClient)
}

// session returns a client carrying the saved token.  An expired token is
// refreshed once and the new session saved.
func (r *Runner) session(ctx context.Context, cmd *cli.Command) (*client.Client, *Credentials, error) {
	path := cmd.String("credentials")
	creds, err := loadCredentials(path)
	if err != nil {
		return nil, nil, err
	}
	c := r.newClient(cmd)
	if creds == nil || creds.Token == "" || creds.Server != c.BaseURL() {
		return nil, nil, errors.New("not signed in; run `collection login` first")
	}
	c.SetToken(creds.Token)
	if !creds.Expired(r.now()) {
		return c, creds, nil
	}

	r.logger.Debug("access token expired, refreshing", "expires_at", creds.ExpiresAt)
	sess, err := c.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		if client.StatusOf(err) == http.StatusUnauthorized {
			return nil, nil, errors.New("session expired; run `collection login` again")
		}
		return nil, nil, err
	}
	creds.Token = sess.Token
	creds.ExpiresAt = sess.ExpiresAt
	creds.RefreshToken = sess.RefreshToken
	creds.RefreshExpiresAt = sess.RefreshExpiresAt
	if err := saveCredentials(path, creds); err != nil {
		return nil, nil, err
	}
	return c, creds, nil
}

// controller wraps c in a collection controller that logs its transitions
// at debug level.
func (r *Runner) controller(c *client.Client) *collection.Controller {
	return collection.NewController(c,
		collection.WithLogger(r.logger),
		collection.WithOnChange(func(s collection.State) {
			r.logger.Debug("collection", "phase", s.Phase, "page", s.Page, "entries", len(s.Entries), "generation", s.Generation)
		}),
	)
}

func themeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "theme",
		Aliases: []string{"t"},
		Usage:   "Color theme: dark or light",
		Value:   ui.Dark.Name,
		Sources: cli.EnvVars("MOVIEFLIX_THEME"),
	}
}

func (r *Runner) theme(cmd *cli.Command) (ui.Theme, error) {
	if cmd.String("theme") == "" {
		return ui.Dark, nil
	}
	return ui.ThemeByName(cmd.String("theme"))
}

func (r *Runner) println(s string) error {
	if _, err := fmt.Fprintln(r.output, s); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// describe turns an API failure into a message for the terminal, listing
// every rejected field.
func describe(err error) error {
	var ae *client.APIError
	if !errors.As(err, &ae) {
		return err
	}
	msg := ae.Message
	var me *collection.MutationError
	if errors.As(err, &me) {
		msg = me.Message
	}
	if len(ae.Details) == 0 {
		return errors.New(msg)
	}
	lines := []string{msg + ":"}
	for _, d := range ae.Details {
		lines = append(lines, "  - "+d.Message)
	}
	return errors.New(strings.Join(lines, "\n"))
}
