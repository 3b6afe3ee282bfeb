// Package cli provides the crosssale command-line interface.
package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/temcen/crosssale/internal/app"
	"github.com/temcen/crosssale/internal/config"
	"github.com/temcen/crosssale/internal/crosssale"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	cfgFile string
	baseURL string
	token   string
	verbose bool

	cfg    *config.Config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "crosssale",
	Short: "Cross-sale recommendations at the point of sale",
	Long: `crosssale talks to the cross-sale recommendation service.

It can fetch recommendations for the items in a check, walk through them in
an interactive console overlay that reports what was accepted, trigger a
recalculation of the recommendation table, and mint terminal tokens.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" {
			return nil
		}

		loaded, err := config.LoadFile(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		if cmd.Flags().Changed("base-url") {
			cfg.CrossSale.BaseURL = baseURL
		}
		if cmd.Flags().Changed("token") {
			cfg.CrossSale.Token = token
		}

		logger = app.NewLogger(cfg.Logging)
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		}
		return nil
	},
}

func newClient() *crosssale.Client {
	return crosssale.New(cfg.CrossSale, logger)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: app.yaml in ./config or .)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "service base URL, overrides crosssale.base_url")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token, overrides crosssale.token")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(recalculateCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(tokenCmd)
}
