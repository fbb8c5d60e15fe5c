// Command migrate applies the demos, knowledge base and workflow schema.
//
//	migrate up | down | version
//	migrate steps <n>     apply n migrations (negative rolls back)
//	migrate force <v>     mark version v clean after a failed run
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	infraconfig "github.com/Fusionaimcp4/localboxs/infrastructure/config"
	"github.com/Fusionaimcp4/localboxs/internal/config"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

const (
	migrationsSource = "file://migrations"
	usage            = "Usage: migrate <up|down|version|steps N|force V>"
)

type command struct {
	needsArg bool
	run      func(m *migrate.Migrate, arg int) error
}

var commands = map[string]command{
	"up":      {run: func(m *migrate.Migrate, _ int) error { return m.Up() }},
	"down":    {run: func(m *migrate.Migrate, _ int) error { return m.Down() }},
	"steps":   {needsArg: true, run: func(m *migrate.Migrate, n int) error { return m.Steps(n) }},
	"force":   {needsArg: true, run: func(m *migrate.Migrate, v int) error { return m.Force(v) }},
	"version": {run: printVersion},
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return exitFailure
	}

	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n%s\n", name, usage)
		return exitFailure
	}

	var arg int
	if cmd.needsArg {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "%s needs a number\n%s\n", name, usage)
			return exitFailure
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid number %q: %v\n", args[1], err)
			return exitFailure
		}
		arg = n
	}

	db, err := config.LoadDatabase(infraconfig.GetConfigPath("config.yml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitFailure
	}

	m, err := migrate.New(migrationsSource, db.URL())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open migrations: %v\n", err)
		return exitFailure
	}
	defer func() { _, _ = m.Close() }()

	err = cmd.run(m, arg)
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		fmt.Println("Schema already up to date")
	case err != nil:
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", name, err)
		return exitFailure
	case name != "version":
		fmt.Printf("migrate %s done\n", name)
	}
	return exitSuccess
}

func printVersion(m *migrate.Migrate, _ int) error {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("No migrations applied")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Version %d (dirty: %t)\n", v, dirty)
	return nil
}
