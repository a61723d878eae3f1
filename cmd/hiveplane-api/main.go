package main

import (
	"context"
	"os"

	"github.com/hiveplane/hiveplane/pkg/cmd"
	"github.com/hiveplane/hiveplane/pkg/config"
	"github.com/hiveplane/hiveplane/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "hiveplane-api",
		Usage:                 "Manage agents, contracts, and workflows over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the orchestrator configuration file",
				Sources: cli.EnvVars("HIVEPLANE_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for persistence",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Hiveplane API")

			cfg := config.LoadOrDefault(command.String("config"))
			if url := command.String("database-url"); url != "" {
				cfg.DatabaseURL = url
			}

			if bus := command.String("event-bus"); bus != "" {
				cfg.EventBus = bus
			}

			if err := config.Validate(cfg); err != nil {
				return err
			}

			runtime, err := cmd.NewRuntime(ctx, logger, cfg, "hiveplane-api")
			if err != nil {
				return err
			}

			defer runtime.Close(ctx)

			api := NewAPI(logger, runtime)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
