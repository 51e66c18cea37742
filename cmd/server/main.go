package main // Entry point package

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3" // command line parsing
	"go.uber.org/zap"

	"github.com/iliyamo/movieflix/internal/config" // Internal config loader
	"github.com/iliyamo/movieflix/internal/logger"
)

func main() {
	app := &cli.Command{
		Name:  "movieflix",
		Usage: "MovieFlix collection API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an optional TOML configuration file",
				Sources: cli.EnvVars("MOVIEFLIX_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{Name: "serve", Usage: "Run the HTTP API (default)", Action: withEnv(serve)},
			{Name: "migrate", Usage: "Create or update the database schema and exit", Action: withEnv(migrate)},
			{Name: "audit", Usage: "Consume entry events from RabbitMQ into the audit log", Action: withEnv(audit)},
		},
		Action: withEnv(serve), // no sub-command means serve
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "movieflix:", err)
		os.Exit(1)
	}
}

// env is what every command starts from: the loaded configuration and the
// process logger.
type env struct {
	cfg config.Config
	log *zap.SugaredLogger
}

func withEnv(run func(context.Context, env) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := config.Load(cmd.String("config")) // Load environment config
		if err != nil {
			return err
		}
		log, err := logger.New(cfg.Env)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()
		return run(ctx, env{cfg: cfg, log: log})
	}
}
