// Command migrate applies the embedded SQL migrations to DATABASE_URL.
package main

import (
	"errors"
	"flag"
	"os"

	"github.com/cloudmarket/backend/pkg/config"
	"github.com/cloudmarket/backend/pkg/database"
	"github.com/cloudmarket/backend/pkg/logger"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg := config.Load()

	if err := database.Migrate(cfg.Database.URL, *direction); err != nil {
		if errors.Is(err, database.ErrNoChange) {
			logger.Info("Schema already up to date")
			return
		}
		logger.Error("Migration failed", "error", err, "direction", *direction)
		os.Exit(1)
	}
	logger.Info("Migrations applied", "direction", *direction)
}
