package cli

import (
	"github.com/google/uuid"

	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/commands"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/queries"
	"github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/outbox"
	"github.com/mugi0227/nagi-sub000/internal/worker"
)

// App holds the CLI application dependencies.
type App struct {
	// Schedule Command Handlers
	GeneratePlanHandler  *commands.GeneratePlanHandler
	MoveTimeBlockHandler *commands.MoveTimeBlockHandler
	SaveSettingsHandler  *commands.SaveSettingsHandler

	// Schedule Query Handlers
	GetScheduleHandler *queries.GetScheduleHandler
	GetTodayHandler    *queries.GetTodayHandler
	GetSettingsHandler *queries.GetSettingsHandler

	// Background (used by `nagi serve` and `nagi worker run`)
	Driver          *worker.Driver
	OutboxProcessor *outbox.Processor

	// Listen addresses
	APIAddr          string
	WorkerHealthAddr string

	// Current user (configured per environment)
	CurrentUserID uuid.UUID
}

// NewApp creates a new CLI application with the provided handlers.
func NewApp(
	generatePlanHandler *commands.GeneratePlanHandler,
	moveTimeBlockHandler *commands.MoveTimeBlockHandler,
	saveSettingsHandler *commands.SaveSettingsHandler,
	getScheduleHandler *queries.GetScheduleHandler,
	getTodayHandler *queries.GetTodayHandler,
	getSettingsHandler *queries.GetSettingsHandler,
) *App {
	return &App{
		GeneratePlanHandler:  generatePlanHandler,
		MoveTimeBlockHandler: moveTimeBlockHandler,
		SaveSettingsHandler:  saveSettingsHandler,
		GetScheduleHandler:   getScheduleHandler,
		GetTodayHandler:      getTodayHandler,
		GetSettingsHandler:   getSettingsHandler,
		CurrentUserID:        uuid.Nil,
	}
}

// SetCurrentUserID updates the current user ID.
func (a *App) SetCurrentUserID(id uuid.UUID) {
	a.CurrentUserID = id
}

// SetBackground wires the periodic driver and outbox processor.
func (a *App) SetBackground(driver *worker.Driver, processor *outbox.Processor) {
	a.Driver = driver
	a.OutboxProcessor = processor
}

// SetAddrs updates the API and worker health listen addresses.
func (a *App) SetAddrs(apiAddr, workerHealthAddr string) {
	a.APIAddr = apiAddr
	a.WorkerHealthAddr = workerHealthAddr
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
