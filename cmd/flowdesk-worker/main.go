package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/dukex/flowdesk/pkg/cmd"
	"github.com/dukex/flowdesk/pkg/log"
	"github.com/dukex/flowdesk/pkg/notify"
	"github.com/dukex/flowdesk/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:  "flowdesk-worker",
		Usage: "Consume run events: audit entries, callbacks and due-date email",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL",
				Sources:  cli.EnvVars("DATABASE_URL"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus provider (kafka, gochannel)",
				Sources:  cli.EnvVars("EVENT_BUS"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Logging level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
				Value:   "info",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := slog.With("service", "flowdesk-worker")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tracer, err := otelhelper.NewTracer(ctx, "flowdesk-worker")
			if err != nil {
				return err
			}

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() { _ = persistence.Close(ctx) }()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "flowdesk-worker", logger)
			defer func() { _ = eventBus.Close() }()

			worker := NewWorker(persistence, eventBus, notify.NewLogNotifier(logger), tracer, logger)

			return worker.Start(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		slog.Error("Worker failed", "error", err)
		os.Exit(1)
	}
}
