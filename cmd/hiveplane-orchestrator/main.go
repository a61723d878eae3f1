package main

import (
	"context"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hiveplane/hiveplane/pkg/cmd"
	"github.com/hiveplane/hiveplane/pkg/config"
	"github.com/hiveplane/hiveplane/pkg/log"
	"github.com/hiveplane/hiveplane/pkg/web"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "hiveplane-orchestrator",
		EnableShellCompletion: true,
		Usage:                 "Run the agent orchestration daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "orchestrator-id",
				Aliases: []string{"id"},
				Usage:   "Custom orchestrator ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("ORCHESTRATOR_ID"),
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
			&cli.IntFlag{
				Name:    "api-port",
				Usage:   "Serve the HTTP API from this process on the given port (0 disables)",
				Value:   0,
				Sources: cli.EnvVars("API_PORT"),
			},
			&cli.StringFlag{
				Name:    "sweep-schedule",
				Usage:   "Cron schedule for the auto-assignment sweeper",
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
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

			orchestratorID := command.String("orchestrator-id")
			if orchestratorID == "" {
				orchestratorID = "orchestrator-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("hiveplane-orchestrator").With("orchestrator_id", orchestratorID)

			logger.InfoContext(ctx, "Initializing Hiveplane Orchestrator")

			cfg := config.LoadOrDefault(command.String("config"))
			if url := command.String("database-url"); url != "" {
				cfg.DatabaseURL = url
			}

			if bus := command.String("event-bus"); bus != "" {
				cfg.EventBus = bus
			}

			if schedule := command.String("sweep-schedule"); schedule != "" {
				cfg.SweepSchedule = schedule
			}

			if err := config.Validate(cfg); err != nil {
				return err
			}

			runtime, err := cmd.NewRuntime(ctx, logger, cfg, "hiveplane-orchestrator")
			if err != nil {
				return err
			}

			defer runtime.Close(ctx)

			// With the in-process event bus nothing outside this daemon can
			// reach the engine, so the HTTP API runs embedded.
			if port := command.Int("api-port"); port > 0 {
				handlers := web.NewAPIHandlers(
					runtime.Orchestrator,
					runtime.Persistence,
					validator.New(validator.WithRequiredStructEnabled()),
				)
				app := web.NewApp(handlers)

				go func() {
					if err := app.Listen(":" + strconv.Itoa(port)); err != nil {
						logger.ErrorContext(ctx, "Embedded API stopped", "error", err)
					}
				}()

				defer func() {
					if err := app.Shutdown(); err != nil {
						logger.ErrorContext(ctx, "Failed to shut down embedded API", "error", err)
					}
				}()

				logger.InfoContext(ctx, "Serving HTTP API", "port", port)
			}

			manager := NewOrchestratorManager(orchestratorID, runtime, logger)

			err = manager.Start(ctx, cfg.SweepSchedule)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start orchestrator", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
