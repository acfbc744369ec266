// Package postgresql provides the PostgreSQL persistence implementation for
// the flow engine.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Postgres driver registration.
	_ "github.com/lib/pq"

	"github.com/albertobarcelos/nexflow/pkg/persistence"
	"github.com/albertobarcelos/nexflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db             *sql.DB
	logger         *slog.Logger
	flowRepo       *FlowRepository
	stepRepo       *StepRepository
	fieldRepo      *FieldRepository
	cardRepo       *CardRepository
	accessRepo     *AccessRepository
	automationRepo *AutomationRepository
	eventRepo      *EventRepository
	activityRepo   *ActivityRepository
	commissionRepo *CommissionRepository
}

// NewPersistence connects, migrates and returns a PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:             database,
		logger:         logger,
		flowRepo:       &FlowRepository{db: database, logger: logger},
		stepRepo:       &StepRepository{db: database, logger: logger},
		fieldRepo:      &FieldRepository{db: database, logger: logger},
		cardRepo:       &CardRepository{db: database, logger: logger},
		accessRepo:     &AccessRepository{db: database, logger: logger},
		automationRepo: &AutomationRepository{db: database, logger: logger},
		eventRepo:      &EventRepository{db: database, logger: logger},
		activityRepo:   &ActivityRepository{db: database, logger: logger},
		commissionRepo: &CommissionRepository{db: database, logger: logger},
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Flows() persistence.FlowRepository             { return p.flowRepo }
func (p *Persistence) Steps() persistence.StepRepository             { return p.stepRepo }
func (p *Persistence) Fields() persistence.FieldRepository           { return p.fieldRepo }
func (p *Persistence) Cards() persistence.CardRepository             { return p.cardRepo }
func (p *Persistence) Access() persistence.AccessRepository          { return p.accessRepo }
func (p *Persistence) Automations() persistence.AutomationRepository { return p.automationRepo }
func (p *Persistence) Events() persistence.EventRepository           { return p.eventRepo }
func (p *Persistence) Activities() persistence.ActivityRepository    { return p.activityRepo }
func (p *Persistence) Commissions() persistence.CommissionRepository { return p.commissionRepo }
