package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/latchtree/pkg/api"
	"github.com/ssargent/latchtree/pkg/di"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control plane",
	Long: `Start latchtree's HTTP server: put/get against the configured index,
PALM batch submission, health, and prometheus metrics.

Example:
  latchtree serve --port=8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if servePort != 0 {
			cfg.Port = servePort
		}

		container, err := di.NewContainer(cfg)
		if err != nil {
			return fmt.Errorf("failed to build container: %w", err)
		}
		defer container.Close()

		return api.StartServer(container.Registry, container.Engine, api.ServerConfig{Port: cfg.Port})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides config)")
}
