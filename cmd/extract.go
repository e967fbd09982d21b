package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/partscout/internal/pipeline"
	"github.com/JakeFAU/partscout/internal/server"
	"github.com/JakeFAU/partscout/internal/source"
)

func newExtractCmd() *cobra.Command {
	var (
		kind     string
		location string
		band     bandFlags
	)
	cmd := &cobra.Command{
		Use:   "extract <snapshot.html>",
		Short: "Extracts records from a saved page without fetching anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := resolveSession(cmd.Context())
			if err != nil {
				return err
			}
			html, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			x := server.NewExtractor(rt.cfg, rt.logger)

			switch kind {
			case "inventory":
				listings, err := pipeline.ExtractInventorySnapshot(x, html, location)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), listings)
			case "market":
				result, err := pipeline.ExtractMarketSnapshot(x, html, band.resolve(cmd, rt))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			default:
				return fmt.Errorf("unknown kind %q: want inventory or market", kind)
			}
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "market", "page kind: inventory or market")
	cmd.Flags().StringVar(&location, "location", source.AllLocations, "branch label for inventory listings")
	band.register(cmd)
	return cmd
}
