package main

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/ManuelReschke/CourseSeat/internal/pkg/config"
)

var migrationsPath string

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect SQL schema migrations",
	}
	cmd.PersistentFlags().StringVar(&migrationsPath, "path", "migrations", "directory holding the migration files")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrate(func(m *migrate.Migrate, _ []string) error {
			err := m.Up()
			if errors.Is(err, migrate.ErrNoChange) {
				log.Println("No changes: database is up to date")
				return nil
			}
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			log.Println("Migrations applied")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		Args:  cobra.NoArgs,
		RunE: withMigrate(func(m *migrate.Migrate, _ []string) error {
			if err := m.Steps(-1); err != nil {
				return fmt.Errorf("roll back last migration: %w", err)
			}
			log.Println("Last migration rolled back")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "goto [version]",
		Short: "Migrate up or down to a specific version",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrate(func(m *migrate.Migrate, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			err = m.Migrate(uint(version))
			if errors.Is(err, migrate.ErrNoChange) {
				log.Printf("No changes: database is already at version %d", version)
				return nil
			}
			if err != nil {
				return fmt.Errorf("migrate to version %d: %w", version, err)
			}
			log.Printf("Migrated to version %d", version)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the current migration version",
		Args:  cobra.NoArgs,
		RunE: withMigrate(func(m *migrate.Migrate, _ []string) error {
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Println("No migrations applied yet")
				return nil
			}
			if err != nil {
				return fmt.Errorf("read migration version: %w", err)
			}
			suffix := ""
			if dirty {
				suffix = " (dirty)"
			}
			log.Printf("Current migration version: %d%s", version, suffix)
			return nil
		}),
	})

	return cmd
}

func withMigrate(run func(m *migrate.Migrate, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		log.Printf("Connecting to database: %s@%s:%s/%s", cfg.DB.User, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)

		m, err := migrate.New("file://"+migrationsPath, migrationURL(cfg.DB))
		if err != nil {
			return fmt.Errorf("init migrations: %w", err)
		}
		defer func() {
			if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
				log.Printf("Closing migration resources failed: %v, %v", sourceErr, dbErr)
			}
		}()
		return run(m, args)
	}
}

// migrationURL turns the application DSN into a golang-migrate database URL.
func migrationURL(db config.Database) string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		db.User, db.Password, db.Host, db.Port, db.Name)
}
