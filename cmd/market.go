package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/partscout/internal/extract"
	"github.com/JakeFAU/partscout/internal/scout"
	"github.com/JakeFAU/partscout/internal/server"
)

type bandFlags struct {
	min, max float64
}

func (b *bandFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&b.min, "min-price", 0, "lowest sold price kept (default from sources.default_min_price)")
	cmd.Flags().Float64Var(&b.max, "max-price", 0, "highest sold price kept (default from sources.default_max_price)")
}

// resolve fills unset bounds from the configured default band.
func (b bandFlags) resolve(cmd *cobra.Command, rt *session) extract.PriceBand {
	band := extract.PriceBand{Min: rt.cfg.Sources.DefaultMinPrice, Max: rt.cfg.Sources.DefaultMaxPrice}
	if cmd.Flags().Changed("min-price") {
		band.Min = b.min
	}
	if cmd.Flags().Changed("max-price") {
		band.Max = b.max
	}
	return band
}

func newMarketCmd() *cobra.Command {
	var (
		band      bandFlags
		sortBy    string
		ascending bool
	)
	cmd := &cobra.Command{
		Use:   "market <vehicle>",
		Short: "Analyses sold auctions for a vehicle and prints the report as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := resolveSession(cmd.Context())
			if err != nil {
				return err
			}
			var key extract.SortKey
			if sortBy != "" {
				if key, err = extract.ParseSortKey(sortBy); err != nil {
					return err
				}
			}
			app, err := server.Build(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			defer app.Close(context.Background())

			b := band.resolve(cmd, rt)
			report, err := app.Pipeline().AnalyzeMarket(cmd.Context(), scout.MarketQuery{
				Vehicle:  strings.Join(args, " "),
				MinPrice: b.Min,
				MaxPrice: b.Max,
			})
			if err != nil {
				return fmt.Errorf("analyze market: %w", err)
			}
			if key != "" {
				report.Analysis = extract.SortAnalysis(report.Analysis, key, ascending)
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	band.register(cmd)
	cmd.Flags().StringVar(&sortBy, "sort", "", "order analysis by name, price or count")
	cmd.Flags().BoolVar(&ascending, "asc", false, "sort ascending instead of descending")
	return cmd
}
