// Command miactl runs the assistant's pipeline pieces from a terminal.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mia/apps/backend/internal/config"
	"mia/apps/backend/internal/logging"
)

var (
	outputJSON bool
	seedPath   string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "miactl",
	Short: "Operate and inspect the MIA assistant",
	Long: `miactl exposes the assistant's building blocks for operators.

Use it to apply database migrations, check how a message is classified and
gated, run catalog searches and send a full message through the pipeline.
Without DATABASE_URL (or with USE_IN_MEMORY_STORE=true) the commands read the
seed fixture instead of Postgres.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if cmd.Flags().Changed("seed") {
			cfg.SeedPath = seedPath
		}
		var err error
		logger, err = logging.New(cfg.AppEnv, cfg.LogLevel)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&seedPath, "seed", "seed/demo.yaml", "seed fixture used by in-memory mode")

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newClassifyCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newAskCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
