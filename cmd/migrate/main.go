package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"ms-boxoffice/internal/config"
	"ms-boxoffice/internal/database"
	"ms-boxoffice/internal/database/migrations"
	"ms-boxoffice/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := config.Load()

	var (
		dsn     string
		dir     string
		down    bool
		steps   int
		force   int
		version bool
	)
	flagSet := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	flagSet.StringVar(&dsn, "dsn", cfg.Database.DSN, "Postgres connection string (default from POSTGRES_DSN)")
	flagSet.StringVarP(&dir, "dir", "d", cfg.Database.MigrationsDir, "directory holding the *.sql migrations")
	flagSet.BoolVar(&down, "down", false, "roll back every migration")
	flagSet.IntVarP(&steps, "steps", "n", 0, "apply n migrations, or roll back when negative")
	flagSet.IntVar(&force, "force", -1, "mark the schema as clean at this version without running anything")
	flagSet.BoolVar(&version, "version", false, "print the current schema version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	log := logger.New(os.Stderr, cfg.Log.Level)
	cfg.Database.DSN = dsn

	db, err := database.Open(context.Background(), cfg.Database, log)
	if err != nil {
		return err
	}
	runner := migrations.NewRunner(db, dir, log)
	defer runner.Close()

	switch {
	case version:
		v, dirty, err := runner.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		return nil
	case force >= 0:
		return runner.Force(force)
	case down:
		return runner.Down()
	case steps != 0:
		return runner.Steps(steps)
	default:
		return runner.Up()
	}
}
