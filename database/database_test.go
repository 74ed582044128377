package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"gorm.io/gorm"

	"github.com/701789262a/backend-dailychat/component"
	"github.com/701789262a/backend-dailychat/database/migration"
	apperrors "github.com/701789262a/backend-dailychat/errors"
	"github.com/701789262a/backend-dailychat/logger"
)

type widget struct {
	ID   uint
	Name string
}

func memoryConfig(t *testing.T) Config {
	t.Helper()
	return Config{DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()), Migrate: true}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Driver != DriverSQLite {
		t.Errorf("Driver = %q", cfg.Driver)
	}
	if cfg.MaxOpenConns != 1 {
		t.Errorf("MaxOpenConns = %d, want 1", cfg.MaxOpenConns)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"driver", func(c *Config) { c.Driver = "postgres" }},
		{"idle above open", func(c *Config) { c.MaxIdleConns = 5 }},
		{"lifetime", func(c *Config) { c.ConnMaxLifetime = "forever" }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestComponentLifecycleWithMigrations(t *testing.T) {
	ctx := context.Background()
	comp := NewComponent(memoryConfig(t), logger.Nop()).
		WithMigrations(os.DirFS("testdata"), "migrations")

	if comp.DB() != nil {
		t.Fatal("DB() should be nil before Start")
	}
	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer comp.Stop(ctx) //nolint:errcheck

	if h := comp.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("Health = %+v", h)
	}
	if !comp.DB().GormDB.Migrator().HasTable("widgets") {
		t.Fatal("widgets table should exist after migrations")
	}

	v, dirty, err := migration.Version(comp.DB().GormDB, os.DirFS("testdata"), "migrations", migration.SQLite)
	if err != nil || v != 1 || dirty {
		t.Errorf("Version = %d, %v, %v; want 1, false, nil", v, dirty, err)
	}

	// Second run is a no-op.
	if err := migration.MigrateUp(comp.DB().GormDB, os.DirFS("testdata"), "migrations", migration.SQLite); err != nil {
		t.Errorf("repeat MigrateUp: %v", err)
	}
}

func TestDuplicateTranslatesToAlreadyExists(t *testing.T) {
	ctx := context.Background()
	comp := NewComponent(memoryConfig(t), logger.Nop()).
		WithMigrations(os.DirFS("testdata"), "migrations")
	if err := comp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer comp.Stop(ctx) //nolint:errcheck

	db := comp.DB()
	if err := db.WithContext(ctx).Create(&widget{Name: "a"}).Error; err != nil {
		t.Fatal(err)
	}
	err := db.WithContext(ctx).Create(&widget{Name: "a"}).Error
	if !IsDuplicateError(err) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if appErr := FromDatabase(err, "widget", "a"); appErr.Code != apperrors.ErrCodeAlreadyExists {
		t.Errorf("code = %s", appErr.Code)
	}

	var w widget
	err = db.WithContext(ctx).Where("name = ?", "missing").First(&w).Error
	if appErr := FromDatabase(err, "widget", "missing"); appErr.Code != apperrors.ErrCodeNotFound {
		t.Errorf("code = %s", appErr.Code)
	}
}

func TestWithTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	comp := NewComponent(memoryConfig(t), logger.Nop()).
		WithMigrations(os.DirFS("testdata"), "migrations")
	if err := comp.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer comp.Stop(ctx) //nolint:errcheck

	boom := errors.New("boom")
	err := comp.DB().WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&widget{Name: "rolled"}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	var n int64
	comp.DB().WithContext(ctx).Model(&widget{}).Count(&n)
	if n != 0 {
		t.Errorf("count = %d after rollback", n)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	db, err := Open(context.Background(), memoryConfig(t), logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if h := db.CheckHealth(context.Background()); h.Connected {
		t.Error("closed DB should not report connected")
	}
}
