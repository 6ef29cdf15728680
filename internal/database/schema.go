package database

import (
	"context"
	"fmt"
	"log/slog"

	"guestbook/internal/config"
	"guestbook/internal/middleware"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// TableStatus describes one schema-managed table.
type TableStatus struct {
	Model  string
	Table  string
	Exists bool
}

// SchemaStatus summarizes the schema of the connected database.
type SchemaStatus struct {
	Driver      string
	Environment string
	Tables      []TableStatus
}

// Pending reports whether any schema-managed table is missing.
func (s *SchemaStatus) Pending() bool {
	for _, t := range s.Tables {
		if !t.Exists {
			return true
		}
	}
	return false
}

// ApplySchema creates or updates every table in PersistentModels.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	middleware.Logger.InfoContext(ctx, "Running GORM AutoMigrate",
		slog.String("driver", cfg.DBDriver),
		slog.String("env", cfg.Env),
	)
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// GetSchemaStatus reports which schema-managed tables exist.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	status := &SchemaStatus{
		Driver:      cfg.DBDriver,
		Environment: cfg.Env,
	}

	migrator := db.WithContext(ctx).Migrator()
	for _, model := range PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("parse model %T: %w", model, err)
		}
		status.Tables = append(status.Tables, TableStatus{
			Model:  modelName(stmt.Schema),
			Table:  stmt.Schema.Table,
			Exists: migrator.HasTable(model),
		})
	}

	return status, nil
}

func modelName(s *schema.Schema) string {
	if s == nil {
		return ""
	}
	return s.Name
}
