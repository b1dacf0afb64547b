// Command migrate manages the database schema.
package main

import (
	"flag"
	"log"

	"qeval/internal/config"
	"qeval/internal/database"
	"qeval/internal/logging"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "configuration file path")
		path       = flag.String("path", "migrations", "migrations directory")
		down       = flag.Bool("down", false, "roll back all migrations")
		version    = flag.Bool("version", false, "print the current migration version")
		force      = flag.Int("force", -1, "force the migration version (dirty state recovery)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logging: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, *path)
	if err != nil {
		log.Fatalf("failed to create migrator: %v", err)
	}
	defer migrator.Close()

	switch {
	case *down:
		if err := migrator.Down(); err != nil {
			log.Fatalf("rollback failed: %v", err)
		}
		log.Println("rollback complete")
	case *version:
		v, err := migrator.Version()
		if err != nil {
			log.Fatalf("version check failed: %v", err)
		}
		log.Printf("current migration version: %d", v)
	case *force >= 0:
		if err := migrator.Force(*force); err != nil {
			log.Fatalf("force failed: %v", err)
		}
		log.Printf("migration version forced to %d", *force)
	default:
		if err := migrator.Up(); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		log.Println("migrations complete")
	}
}
