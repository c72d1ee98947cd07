// Command migrate manages the database schema using the embedded migrations.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/bissquit/business-cards/internal/pkg/postgres"
	"github.com/bissquit/business-cards/migrations"
	"github.com/golang-migrate/migrate/v4"
)

func main() {
	databaseURL := flag.String("database-url", os.Getenv("APP_DATABASE__URL"), "PostgreSQL connection URL")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		return
	}

	if *databaseURL == "" {
		log.Fatal("database url is not set")
	}

	m, err := postgres.NewMigrator(*databaseURL, migrations.FS)
	if err != nil {
		log.Fatalf("init migrator: %v", err)
	}
	defer m.Close()

	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("up: %v", err)
		}
		fmt.Println("migrated up")
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("down: %v", err)
		}
		fmt.Println("migrated down")
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("version: %v", err)
		}
		fmt.Printf("version: %d, dirty: %t\n", v, dirty)
	case "force":
		if len(args) < 2 {
			log.Fatal("force requires a version argument")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("invalid version: %v", err)
		}
		if err := m.Force(v); err != nil {
			log.Fatalf("force: %v", err)
		}
		fmt.Printf("forced version %d\n", v)
	default:
		printUsage()
	}
}

func printUsage() {
	fmt.Println("Usage: migrate [-database-url url] <command>")
	fmt.Println("Commands: up, down, version, force <version>")
	flag.PrintDefaults()
}
