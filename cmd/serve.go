package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/joefoxing/lyriq/internal/config"
	"github.com/joefoxing/lyriq/internal/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the API server and transcription worker pool",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection string",
				Sources: cli.EnvVars("LYRIQ_DATABASE_URL"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Number of transcription workers",
				Sources: cli.EnvVars("LYRIQ_WORKER_COUNT"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if v := cmd.String("database-url"); v != "" {
				cfg.Database.URL = v
			}
			if v := cmd.Int("workers"); v > 0 {
				cfg.Worker.Count = int(v)
			}
			if v := cmd.String("log-level"); v != "" {
				cfg.Logging.Level = v
			}

			if cfg.Database.URL == "" {
				return fmt.Errorf("database URL is required (set LYRIQ_DATABASE_URL env or database.url in config)")
			}

			return server.Run(ctx, cfg)
		},
	}
}
