package db

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand. It opens dbPath
// without applying the schema so that the schema can be inspected and moved.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return errors.New("missing migrate action")
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		return err
	}
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch args[0] {
	case "up":
		if err := database.MigrateUp(migrationsFS); err != nil {
			return err
		}
	case "down":
		if err := database.MigrateDown(migrationsFS); err != nil {
			return err
		}
	case "to", "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: lanekeep migrate %s <version>", args[0])
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		if args[0] == "to" {
			err = database.MigrateTo(migrationsFS, uint(v))
		} else {
			err = database.MigrateForce(migrationsFS, v)
		}
		if err != nil {
			return err
		}
	case "status":
		// Reported below.
	case "help":
		PrintMigrateHelp(out)
		return nil
	default:
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action: %s", args[0])
	}

	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	latest, err := LatestMigrationVersion(migrationsFS)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "current version: %d\n", version)
	fmt.Fprintf(out, "latest version:  %d\n", latest)
	fmt.Fprintf(out, "dirty:           %v\n", dirty)
	if dirty {
		fmt.Fprintln(out, "a migration failed mid-way; inspect the database then run: lanekeep migrate force <version>")
	}
	return nil
}

// PrintMigrateHelp writes the migrate subcommand usage to out.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: lanekeep migrate <action> [args]

Actions:
  up              Apply all pending migrations
  down            Roll back the most recent migration
  to <version>    Migrate up or down to version
  force <version> Record version without running migrations (recovery only)
  status          Show the current and latest versions
  help            Show this help
`)
}
