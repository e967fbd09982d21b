package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/partscout/internal/scout"
	"github.com/JakeFAU/partscout/internal/server"
	"github.com/JakeFAU/partscout/internal/source"
)

func newInventoryCmd() *cobra.Command {
	var q scout.InventoryQuery
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Scrapes salvage-yard inventory and prints the listings as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveSession(cmd.Context())
			if err != nil {
				return err
			}
			app, err := server.Build(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			defer app.Close(context.Background())

			result, err := app.Pipeline().SearchInventory(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("search inventory: %w", err)
			}
			for _, f := range result.Failed {
				rt.logger.Warn("branch skipped", zap.String("branch", f.Branch), zap.String("error", f.Error))
			}
			return printJSON(cmd.OutOrStdout(), result.Branches)
		},
	}
	cmd.Flags().StringVar(&q.Location, "location", source.AllLocations, "branch name or \"All Locations\"")
	cmd.Flags().StringVar(&q.Make, "make", "", "vehicle make filter")
	cmd.Flags().StringVar(&q.Model, "model", "", "vehicle model filter")
	cmd.Flags().StringVar(&q.Year, "year", "", "model year filter")
	return cmd
}
