package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/buildsage/buildsage/bootstrap"
	"github.com/buildsage/buildsage/config"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the entitlement API server",
	Long: `Start the BuildSage API server.

The server will:
  - Load configuration from buildsage.yaml (or --config)
  - Or load configuration from BUILDSAGE_* environment variables
  - Connect to the database and apply pending migrations
  - Seed the launch promotion if one is configured
  - Serve quota checks, usage recording, promotion redemption,
    and payment webhooks

Environment variables (for container deployments):
  BUILDSAGE_DATABASE_DSN    - Database path (default: buildsage.db)
  BUILDSAGE_SERVER_PORT     - Server port (default: 8080)
  BUILDSAGE_BILLING_MODE    - none or stripe
  BUILDSAGE_WEBHOOK_SECRET  - Payment webhook signing secret
  BUILDSAGE_BOOTSTRAP_PROMO - Launch promotion code
  BUILDSAGE_LOG_LEVEL       - Log level: debug, info, warn, error

Examples:
  buildsage serve
  buildsage serve --config /etc/buildsage/config.yaml
  buildsage serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	var app *bootstrap.App
	var err error

	if hasConfigFile && hotReload {
		// Hot reload only works with a config file
		app, err = bootstrap.NewWithHotReload(cfgFile)
	} else {
		cfg, loadErr := config.LoadWithFallback(cfgFile)
		if loadErr != nil {
			return fmt.Errorf("error loading config: %w", loadErr)
		}

		if !hasConfigFile {
			fmt.Println("Running with environment variables (no config file)")
		}

		app, err = bootstrap.New(cfg)
	}

	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
