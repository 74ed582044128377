package database

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/701789262a/backend-dailychat/component"
	"github.com/701789262a/backend-dailychat/database/migration"
	"github.com/701789262a/backend-dailychat/logger"
)

// Component wraps DB and implements component.Component for lifecycle management.
type Component struct {
	db  *DB
	cfg Config
	log *logger.Logger

	migrations     fs.FS
	migrationsPath string
}

// NewComponent creates a database component for use with the component registry.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("database")}
}

// WithMigrations registers the SQL migrations applied on Start when
// Config.Migrate is set.
func (c *Component) WithMigrations(fsys fs.FS, path string) *Component {
	c.migrations = fsys
	c.migrationsPath = path
	return c
}

// DB returns the underlying *DB, or nil if not started.
func (c *Component) DB() *DB { return c.db }

var _ component.Component = (*Component)(nil)

func (c *Component) Name() string { return "database" }

// Start connects and applies pending migrations.
func (c *Component) Start(ctx context.Context) error {
	db, err := Open(ctx, c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("database start: %w", err)
	}
	c.db = db

	if c.cfg.Migrate && c.migrations != nil {
		if err := migration.MigrateUp(db.GormDB, c.migrations, c.migrationsPath, migration.SQLite); err != nil {
			return fmt.Errorf("database migrate: %w", err)
		}
		c.log.Info("schema migrations applied")
	}
	return nil
}

// Stop gracefully closes the database connection.
func (c *Component) Stop(_ context.Context) error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Health pings the database.
func (c *Component) Health(ctx context.Context) component.Health {
	if c.db == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "database not initialized"}
	}
	if h := c.db.CheckHealth(ctx); !h.Connected {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "ping failed: " + h.Error}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe returns infrastructure summary info for the startup log.
func (c *Component) Describe() component.Description {
	details := fmt.Sprintf("driver=%s pool=%d/%d", c.cfg.Driver, c.cfg.MaxOpenConns, c.cfg.MaxIdleConns)
	if c.cfg.Migrate {
		details += " migrate=on"
	}
	return component.Description{Type: "database", Details: details}
}
