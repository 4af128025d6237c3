package main

import (
	"fmt"
	"os"
	"strconv"

	"ms-resale/internal/config"
	"ms-resale/internal/database"
	"ms-resale/internal/database/migrations"
	"ms-resale/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate [flags] <command> [arg]

Commands:
  up             apply every pending migration
  down           roll back every migration
  goto <version> migrate up or down to version
  force <version> set the version without running migrations
  version        print the current version

Flags:`)
	pflag.PrintDefaults()
}

func main() {
	dsn := pflag.String("dsn", "", "postgres connection string (default: built from DB_* variables)")
	pflag.Usage = printUsage
	pflag.Parse()

	args := pflag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	log := logger.NewConsoleLogger(os.Stdout)
	_ = godotenv.Load()

	if *dsn == "" {
		*dsn = database.PostgresDSN(config.Load().Database)
	}

	runner := migrations.NewRunner(*dsn, log)
	if err := runner.Initialize(); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	defer runner.Close()

	if err := run(runner, args); err != nil {
		log.Error("MIGRATE", err.Error())
		runner.Close()
		os.Exit(1)
	}
}

func run(runner *migrations.Runner, args []string) error {
	switch args[0] {
	case "up":
		return runner.MigrateUp()
	case "down":
		return runner.MigrateDown()
	case "goto", "force":
		if len(args) < 2 {
			return fmt.Errorf("%s requires a version", args[0])
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return fmt.Errorf("invalid version %q", args[1])
		}
		if args[0] == "force" {
			return runner.Force(v)
		}
		return runner.MigrateTo(uint(v))
	case "version":
		v, dirty, err := runner.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}
