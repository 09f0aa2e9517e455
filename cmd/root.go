package cmd

import (
	"github.com/urfave/cli/v3"
)

var version = "dev"

func App() *cli.Command {
	return &cli.Command{
		Name:    "lyriq",
		Version: version,
		Usage:   "Asynchronous audio-to-lyrics extraction service. Submit audio, get clean deduplicated lyrics.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				Sources: cli.EnvVars("LYRIQ_CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LYRIQ_LOGGING_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
		},
	}
}
