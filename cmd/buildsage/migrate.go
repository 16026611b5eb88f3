package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply pending database migrations.

The serve command migrates automatically on startup, so this is only
needed when preparing a database ahead of a deploy or inspecting one
without starting the server.

Examples:
  buildsage migrate
  buildsage migrate --config /etc/buildsage/buildsage.yaml`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Printf("%s Database is up to date\n", checkMark)
	return nil
}
