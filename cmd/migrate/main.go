// Command migrate applies or rolls back the database schema outside the
// server process, for deployments that disable auto-migration.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"gitfolio/cmd/internal/app"
)

func main() {
	_ = godotenv.Load()

	down := flag.Bool("down", false, "roll back the most recent migration")
	flag.Parse()

	databaseURL := os.Getenv("GITFOLIO_DATABASE_URL")
	if databaseURL == "" {
		fmt.Fprintln(os.Stderr, "migrate: GITFOLIO_DATABASE_URL is required")
		os.Exit(1)
	}

	var err error
	if *down {
		err = app.RollbackMigration(databaseURL)
	} else {
		err = app.RunMigrations(databaseURL)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
