package bootstrap

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
	"github.com/Fusionaimcp4/localboxs/internal/config"
	"github.com/Fusionaimcp4/localboxs/internal/database"
)

// SetupDatabase connects to the dashboard database. It returns nil when
// the database is disabled.
func SetupDatabase(cfg *config.Config, log infralogger.Logger) (*sqlx.DB, error) {
	if !cfg.Database.Enabled {
		log.Info("Database disabled, dashboard API and demo mirror are off")
		return nil, nil //nolint:nilnil // database is optional
	}
	db, err := database.New(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}
	return db, nil
}
