package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/posfit/internal/adapters/repository"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the result store schema",
	}

	withManager := func(fn func(cmd *cobra.Command, mm *repository.MigrationManager) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			db := c.cfg.Database
			if db.Driver == "" {
				return errNoDatabase
			}
			mm, err := repository.NewMigrationManager(db.Driver, db.DSN)
			if err != nil {
				return err
			}
			defer func() { _ = mm.Close() }()
			return fn(cmd, mm)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: withManager(func(cmd *cobra.Command, mm *repository.MigrationManager) error {
				if err := mm.Up(); err != nil {
					return err
				}
				return printVersion(cmd, mm)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			RunE: withManager(func(cmd *cobra.Command, mm *repository.MigrationManager) error {
				if err := mm.Down(); err != nil {
					return err
				}
				return printVersion(cmd, mm)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: withManager(func(cmd *cobra.Command, mm *repository.MigrationManager) error {
				return printVersion(cmd, mm)
			}),
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, mm *repository.MigrationManager) error {
	v, dirty, err := mm.Version()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty=%t\n", v, dirty)
	return err
}
