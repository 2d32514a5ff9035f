package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mia/apps/backend/internal/db"
)

func newMigrateCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			if databaseURL == "" {
				databaseURL = cfg.DatabaseURL
			}
			if databaseURL == "" {
				return fmt.Errorf("DATABASE_URL or --db is required")
			}
			pool, err := db.Connect(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.Migrate(ctx, pool, logger.Named("migrate"))
			if err != nil {
				return err
			}
			if err := db.ValidateRuntimeSchema(ctx, pool); err != nil {
				return err
			}
			if outputJSON {
				return printJSON(map[string]any{"applied": applied})
			}
			if len(applied) == 0 {
				fmt.Println("schema is up to date")
				return nil
			}
			for _, version := range applied {
				fmt.Printf("applied %s\n", version)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&databaseURL, "db", "", "DATABASE_URL override")
	return cmd
}
