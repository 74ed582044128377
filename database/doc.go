// Package database provides a gorm component backed by SQLite, with
// retrying connects, pool health, error translation into AppError and
// golang-migrate schema migrations.
//
//	comp := database.NewComponent(cfg.Database, log).
//	    WithMigrations(speaker.Migrations, "migrations")
//	registry.Register(comp)
//
// Open enables gorm's TranslateError so unique violations surface as
// gorm.ErrDuplicatedKey and can be mapped with FromDatabase.
package database
