package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mugi0227/nagi-sub000/adapter/cli"
	cliPlan "github.com/mugi0227/nagi-sub000/adapter/cli/plan"
	cliSettings "github.com/mugi0227/nagi-sub000/adapter/cli/settings"
	cliWorker "github.com/mugi0227/nagi-sub000/adapter/cli/worker"
	"github.com/mugi0227/nagi-sub000/internal/app"
	"github.com/mugi0227/nagi-sub000/pkg/config"
	"github.com/mugi0227/nagi-sub000/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// In development without .env, use defaults
		logger.Warn("failed to load config, using development mode", "error", err)
		cfg = &config.Config{AppEnv: "development"}
	}
	cli.SetLogger(logger)

	// Try to initialize the full container
	var cliApp *cli.App
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if cfg.IsDevelopment() {
			logger.Warn("failed to initialize container, running in limited mode", "error", err)
			// In development, allow CLI to run without database
			cliApp = nil
		} else {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
	} else {
		defer container.Close()

		cliApp = cli.NewApp(
			container.GeneratePlanHandler,
			container.MoveTimeBlockHandler,
			container.SaveSettingsHandler,
			container.GetScheduleHandler,
			container.GetTodayHandler,
			container.GetSettingsHandler,
		)
		cliApp.SetCurrentUserID(container.CurrentUserID)
		cliApp.SetBackground(container.Driver, container.OutboxProcessor)
		cliApp.SetAddrs(cfg.APIAddr, cfg.WorkerHealthAddr)
	}

	// Set the CLI app
	cli.SetApp(cliApp)

	// Register commands
	cli.AddCommand(cliPlan.Cmd)
	cli.AddCommand(cliSettings.Cmd)
	cli.AddCommand(cliWorker.Cmd)

	// Execute CLI
	cli.ExecuteContext(ctx)
}
