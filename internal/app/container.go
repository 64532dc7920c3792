// Package app wires the application together: database, redis, event
// publisher, repositories, handlers, and the periodic driver.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	heartbeatDomain "github.com/mugi0227/nagi-sub000/internal/heartbeat/domain"
	heartbeatGate "github.com/mugi0227/nagi-sub000/internal/heartbeat/infrastructure/gate"
	heartbeatServices "github.com/mugi0227/nagi-sub000/internal/heartbeat/application/services"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/commands"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/queries"
	"github.com/mugi0227/nagi-sub000/internal/scheduling/application/services"
	schedulingDomain "github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
	sharedApplication "github.com/mugi0227/nagi-sub000/internal/shared/application"
	"github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/database"
	databasePostgres "github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/database/postgres"
	_ "github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/database/sqlite" // register SQLite driver
	"github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/eventbus"
	"github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/outbox"
	"github.com/mugi0227/nagi-sub000/internal/worker"
	"github.com/mugi0227/nagi-sub000/pkg/config"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis (nil in local mode; the notification gate falls back to memory)
	RedisClient *redis.Client

	// Repositories
	TaskRepo          schedulingDomain.TaskRepository
	ProjectRepo       schedulingDomain.ProjectRepository
	AssignmentRepo    schedulingDomain.TaskAssignmentRepository
	SnapshotRepo      schedulingDomain.ScheduleSnapshotRepository
	SettingsRepo      schedulingDomain.ScheduleSettingsRepository
	PlanRepo          schedulingDomain.DailySchedulePlanRepository
	UserRepo          schedulingDomain.UserRepository
	MessageRepo       heartbeatDomain.MessageRepository
	RetrospectiveRepo heartbeatDomain.RetrospectiveRepository
	OutboxRepo        outbox.Repository

	// Notification gate
	Gate heartbeatDomain.NotificationGate

	// Publishers
	EventPublisher eventbus.Publisher

	// Unit of Work
	UnitOfWork sharedApplication.UnitOfWork

	// Scheduling
	Planner              *services.Planner
	GeneratePlanHandler  *commands.GeneratePlanHandler
	MoveTimeBlockHandler *commands.MoveTimeBlockHandler
	SaveSettingsHandler  *commands.SaveSettingsHandler
	GetScheduleHandler   *queries.GetScheduleHandler
	GetTodayHandler      *queries.GetTodayHandler
	GetSettingsHandler   *queries.GetSettingsHandler

	// Heartbeat
	HeartbeatService     *heartbeatServices.HeartbeatService
	RetrospectiveService *heartbeatServices.RetrospectiveService

	// Background
	OutboxProcessor *outbox.Processor
	Driver          *worker.Driver

	// Current user (configured per environment)
	CurrentUserID uuid.UUID
}

// NewContainer creates and wires all dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	conn, err := database.NewConnection(ctx, databaseConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()
	logger.Info("connected to database", "driver", c.DBDriver)

	// SQLite migrates itself on open; PostgreSQL migration is explicit so a
	// server fleet does not race DDL from every pool open.
	if c.DBDriver == database.DriverPostgres {
		factory := NewRepositoryFactory(conn)
		pool, err := factory.getPostgresPool()
		if err != nil {
			conn.Close()
			return nil, err
		}
		if err := databasePostgres.Migrate(ctx, pool); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// Connect to Redis (optional; the gate degrades to in-memory)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			if !cfg.IsDevelopment() {
				conn.Close()
				return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
			}
			logger.Warn("invalid Redis URL, notification gate will use in-memory fallback", "error", err)
		} else {
			redisClient := redis.NewClient(opt)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				if !cfg.IsDevelopment() {
					conn.Close()
					return nil, fmt.Errorf("failed to connect to Redis: %w", err)
				}
				logger.Warn("Redis not available, notification gate will use in-memory fallback", "error", err)
			} else {
				c.RedisClient = redisClient
				logger.Info("connected to Redis")
			}
		}
	}
	if c.RedisClient != nil {
		c.Gate = heartbeatGate.NewRedisGate(c.RedisClient)
	} else {
		c.Gate = heartbeatGate.NewInMemoryGate()
	}

	// Create repositories
	factory := NewRepositoryFactory(conn)
	if c.TaskRepo, err = factory.TaskRepository(); err != nil {
		conn.Close()
		return nil, err
	}
	if c.ProjectRepo, err = factory.ProjectRepository(); err != nil {
		conn.Close()
		return nil, err
	}
	if c.AssignmentRepo, err = factory.TaskAssignmentRepository(); err != nil {
		conn.Close()
		return nil, err
	}
	if c.SnapshotRepo, err = factory.ScheduleSnapshotRepository(); err != nil {
		conn.Close()
		return nil, err
	}
	if c.SettingsRepo, err = factory.ScheduleSettingsRepository(); err != nil {
		conn.Close()
		return nil, err
	}
	if c.PlanRepo, err = factory.DailyPlanRepository(); err != nil {
		conn.Close()
		return nil, err
	}
	if c.UserRepo, err = factory.UserRepository(); err != nil {
		conn.Close()
		return nil, err
	}
	if c.MessageRepo, err = factory.MessageRepository(); err != nil {
		conn.Close()
		return nil, err
	}
	if c.RetrospectiveRepo, err = factory.RetrospectiveRepository(); err != nil {
		conn.Close()
		return nil, err
	}
	if c.OutboxRepo, err = factory.OutboxRepository(); err != nil {
		conn.Close()
		return nil, err
	}
	if c.UnitOfWork, err = factory.UnitOfWork(); err != nil {
		conn.Close()
		return nil, err
	}

	// Create event publisher. Local/dev mode works without a broker; the
	// breaker keeps a flapping broker from stalling publishes.
	publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
	if err != nil {
		if cfg.IsDevelopment() {
			logger.Warn("RabbitMQ not available, using noop publisher")
			c.EventPublisher = eventbus.NewNoopPublisher(logger)
		} else {
			conn.Close()
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
	} else {
		c.EventPublisher = eventbus.NewBreakerPublisher(publisher, eventbus.DefaultBreakerConfig(), logger)
	}

	// Scheduling services and handlers
	c.Planner = services.NewPlanner(
		c.TaskRepo,
		c.ProjectRepo,
		c.AssignmentRepo,
		c.SnapshotRepo,
		c.SettingsRepo,
		c.PlanRepo,
		c.UserRepo,
		logger,
	)
	c.GeneratePlanHandler = commands.NewGeneratePlanHandler(c.Planner, c.PlanRepo, c.OutboxRepo, c.UnitOfWork)
	c.MoveTimeBlockHandler = commands.NewMoveTimeBlockHandler(c.PlanRepo, c.TaskRepo, c.OutboxRepo, c.UnitOfWork)
	c.SaveSettingsHandler = commands.NewSaveSettingsHandler(c.SettingsRepo)
	c.GetScheduleHandler = queries.NewGetScheduleHandler(c.Planner)
	c.GetTodayHandler = queries.NewGetTodayHandler(c.Planner)
	c.GetSettingsHandler = queries.NewGetSettingsHandler(c.SettingsRepo)

	// Heartbeat services
	c.HeartbeatService = heartbeatServices.NewHeartbeatService(
		c.TaskRepo,
		c.SettingsRepo,
		c.MessageRepo,
		c.Gate,
		c.OutboxRepo,
		c.UnitOfWork,
		heartbeatServices.HeartbeatConfig{
			DailyLimit:      cfg.NotificationLimitPerDay,
			Cooldown:        cfg.NotifyCooldown,
			WindowStartHour: cfg.NotifyWindowStartHour,
			WindowEndHour:   cfg.NotifyWindowEndHour,
		},
		logger,
	)
	c.RetrospectiveService = heartbeatServices.NewRetrospectiveService(
		c.TaskRepo,
		c.RetrospectiveRepo,
		c.MessageRepo,
		c.OutboxRepo,
		c.UnitOfWork,
		logger,
	)

	// Background processors
	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, outbox.ProcessorConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxRetries:   cfg.OutboxMaxRetries,
	}, logger)

	driverCfg := worker.DefaultDriverConfig()
	driverCfg.JobsDisabled = cfg.WorkerJobsDisabled
	driverCfg.PlanMaxDays = cfg.PlanMaxDays
	c.Driver = worker.NewDriver(
		c.UserRepo,
		c.Planner,
		c.GeneratePlanHandler,
		c.HeartbeatService,
		c.RetrospectiveService,
		driverCfg,
		logger,
	)

	userID, err := uuid.Parse(cfg.UserID)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("invalid NAGI_USER_ID: %w", err)
	}
	c.CurrentUserID = userID

	return c, nil
}

// databaseConfig translates application config to the connection factory's.
func databaseConfig(cfg *config.Config) database.Config {
	dbCfg := database.Config{
		Driver:     database.Driver(cfg.DatabaseDriver),
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
	}
	if dbCfg.Driver == "auto" {
		dbCfg.Driver = ""
	}
	// An explicit SQLite path implies local mode even without DATABASE_DRIVER.
	if dbCfg.Driver == "" && dbCfg.SQLitePath != "" {
		dbCfg.Driver = database.DriverSQLite
	}
	if dbCfg.SQLitePath == "" {
		dbCfg.SQLitePath = database.DefaultSQLitePath()
	}
	return dbCfg
}

// Close releases all container resources.
func (c *Container) Close() {
	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("closing event publisher", "error", err)
		}
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("closing redis client", "error", err)
		}
	}
	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("closing database connection", "error", err)
		}
	}
}
