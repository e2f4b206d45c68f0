// Command migrate manages the remote check-in schema outside the service
// process: CI pipelines run "up" before deploys, "down" tears test
// databases back down.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"ms-checkin/internal/config"
	"ms-checkin/internal/remote"
	"ms-checkin/internal/remote/migrations"
)

func main() {
	action := flag.String("action", "up", "migration action: up, down or version")
	dir := flag.String("dir", "./migrations", "directory holding the migration files")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := config.Load()

	db, err := remote.Connect(cfg.RemoteDB.DSN, cfg.RemoteDB.MaxOpenConns, cfg.RemoteDB.MaxIdleConns)
	if err != nil {
		log.Fatalf("Failed to connect to remote database: %v", err)
	}
	defer db.Close()

	runner := migrations.NewRunner(db.Bun, migrations.Options{Dir: *dir})
	defer runner.Close()

	switch *action {
	case "up":
		if err := runner.Up(); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("Migrations applied")
	case "down":
		if err := runner.Down(); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("Migrations rolled back")
	case "version":
		version, err := runner.Version()
		if err != nil {
			log.Fatalf("Failed to read migration version: %v", err)
		}
		fmt.Printf("Schema version: %d\n", version)
	default:
		log.Fatalf("Unknown action %q (want up, down or version)", *action)
	}
}
