package app

import (
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	heartbeatDomain "github.com/mugi0227/nagi-sub000/internal/heartbeat/domain"
	heartbeatPersistence "github.com/mugi0227/nagi-sub000/internal/heartbeat/infrastructure/persistence"
	schedulingDomain "github.com/mugi0227/nagi-sub000/internal/scheduling/domain"
	schedulingPersistence "github.com/mugi0227/nagi-sub000/internal/scheduling/infrastructure/persistence"
	sharedApplication "github.com/mugi0227/nagi-sub000/internal/shared/application"
	"github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/database"
	"github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/mugi0227/nagi-sub000/internal/shared/infrastructure/persistence"
)

// RepositoryFactory creates repositories based on the database driver.
type RepositoryFactory struct {
	conn   database.Connection
	driver database.Driver
}

// NewRepositoryFactory creates a new repository factory.
func NewRepositoryFactory(conn database.Connection) *RepositoryFactory {
	return &RepositoryFactory{
		conn:   conn,
		driver: conn.Driver(),
	}
}

// TaskRepository creates a task repository for the configured driver.
func (f *RepositoryFactory) TaskRepository() (schedulingDomain.TaskRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return schedulingPersistence.NewPostgresTaskRepository(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return schedulingPersistence.NewSQLiteTaskRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// ProjectRepository creates a project repository for the configured driver.
func (f *RepositoryFactory) ProjectRepository() (schedulingDomain.ProjectRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return schedulingPersistence.NewPostgresProjectRepository(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return schedulingPersistence.NewSQLiteProjectRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// TaskAssignmentRepository creates a task assignment repository for the configured driver.
func (f *RepositoryFactory) TaskAssignmentRepository() (schedulingDomain.TaskAssignmentRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return schedulingPersistence.NewPostgresTaskAssignmentRepository(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return schedulingPersistence.NewSQLiteTaskAssignmentRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// ScheduleSnapshotRepository creates a schedule snapshot repository for the configured driver.
func (f *RepositoryFactory) ScheduleSnapshotRepository() (schedulingDomain.ScheduleSnapshotRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return schedulingPersistence.NewPostgresScheduleSnapshotRepository(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return schedulingPersistence.NewSQLiteScheduleSnapshotRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// ScheduleSettingsRepository creates a schedule settings repository for the configured driver.
func (f *RepositoryFactory) ScheduleSettingsRepository() (schedulingDomain.ScheduleSettingsRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return schedulingPersistence.NewPostgresScheduleSettingsRepository(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return schedulingPersistence.NewSQLiteScheduleSettingsRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// DailyPlanRepository creates a daily plan repository for the configured driver.
func (f *RepositoryFactory) DailyPlanRepository() (schedulingDomain.DailySchedulePlanRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return schedulingPersistence.NewPostgresDailyPlanRepository(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return schedulingPersistence.NewSQLiteDailyPlanRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// UserRepository creates a user repository for the configured driver.
func (f *RepositoryFactory) UserRepository() (schedulingDomain.UserRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return schedulingPersistence.NewPostgresUserRepository(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return schedulingPersistence.NewSQLiteUserRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// MessageRepository creates a heartbeat message repository for the configured driver.
func (f *RepositoryFactory) MessageRepository() (heartbeatDomain.MessageRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return heartbeatPersistence.NewPostgresMessageRepository(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return heartbeatPersistence.NewSQLiteMessageRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// RetrospectiveRepository creates a retrospective repository for the configured driver.
func (f *RepositoryFactory) RetrospectiveRepository() (heartbeatDomain.RetrospectiveRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return heartbeatPersistence.NewPostgresRetrospectiveRepository(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return heartbeatPersistence.NewSQLiteRetrospectiveRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// OutboxRepository creates an outbox repository for the configured driver.
func (f *RepositoryFactory) OutboxRepository() (outbox.Repository, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return outbox.NewPostgresRepository(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return outbox.NewSQLiteRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// UnitOfWork creates a unit of work whose transactions the repositories
// pick up from the context.
func (f *RepositoryFactory) UnitOfWork() (sharedApplication.UnitOfWork, error) {
	switch f.driver {
	case database.DriverPostgres:
		pool, err := f.getPostgresPool()
		if err != nil {
			return nil, err
		}
		return sharedPersistence.NewPostgresUnitOfWork(pool), nil

	case database.DriverSQLite:
		db, err := f.getSQLiteDB()
		if err != nil {
			return nil, err
		}
		return sharedPersistence.NewSQLiteUnitOfWork(db), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// Helper methods to get underlying database connections

func (f *RepositoryFactory) getPostgresPool() (*pgxpool.Pool, error) {
	pgConn, ok := f.conn.(interface{ Pool() *pgxpool.Pool })
	if !ok {
		return nil, fmt.Errorf("postgres connection does not expose Pool()")
	}
	return pgConn.Pool(), nil
}

func (f *RepositoryFactory) getSQLiteDB() (*sql.DB, error) {
	sqliteConn, ok := f.conn.(interface{ DB() *sql.DB })
	if !ok {
		return nil, fmt.Errorf("sqlite connection does not expose DB()")
	}
	return sqliteConn.DB(), nil
}

// Driver returns the database driver type.
func (f *RepositoryFactory) Driver() database.Driver {
	return f.driver
}

// Connection returns the underlying database connection.
func (f *RepositoryFactory) Connection() database.Connection {
	return f.conn
}
