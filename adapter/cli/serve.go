package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mugi0227/nagi-sub000/adapter/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the schedule HTTP API",
	Long: `Start the HTTP API server exposing the schedule endpoints.

Examples:
  nagi serve
  nagi serve --addr 127.0.0.1:9090`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.GetScheduleHandler == nil {
			fmt.Println("Serving the API requires a database connection.")
			fmt.Println("Set DATABASE_URL or SQLITE_PATH and try again.")
			return nil
		}

		handler := api.NewScheduleHandler(api.ScheduleHandlerConfig{
			GetSchedule:   app.GetScheduleHandler,
			GetToday:      app.GetTodayHandler,
			GetSettings:   app.GetSettingsHandler,
			GeneratePlan:  app.GeneratePlanHandler,
			MoveTimeBlock: app.MoveTimeBlockHandler,
			SaveSettings:  app.SaveSettingsHandler,
			DefaultUserID: app.CurrentUserID,
			Logger:        logger,
		})

		cfg := api.DefaultServerConfig()
		if app.APIAddr != "" {
			cfg.Addr = app.APIAddr
		}
		if serveAddr != "" {
			cfg.Addr = serveAddr
		}
		server := api.NewServer(cfg, handler, logger)

		// The outbox relay keeps published plans flowing to the broker while
		// the API is up.
		if app.OutboxProcessor != nil {
			go app.OutboxProcessor.Start(cmd.Context())
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-cmd.Context().Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from API_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
