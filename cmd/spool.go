package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AnthusAI/plexus-dashboard/internal/spool"
)

var spoolCmd = &cobra.Command{
	Use:   "spool",
	Short: "Inspect and resubmit batches whose flush failed",
}

var (
	spoolListAll    bool
	spoolListLimit  int
	spoolListOutput string
)

var spoolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List spooled flush failures",
	RunE: func(cmd *cobra.Command, args []string) error {
		sp, err := spool.Open(cfg.Dispatch.SpoolPath)
		if err != nil {
			return err
		}
		defer sp.Close() //nolint:errcheck

		entries, err := sp.List(cmd.Context(), !spoolListAll, spoolListLimit)
		if err != nil {
			return err
		}
		return render(spoolListOutput, entries)
	},
}

var spoolResubmitWorkers int

var spoolResubmitCmd = &cobra.Command{
	Use:   "resubmit",
	Short: "Resubmit every pending spooled batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initClient()
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Spool.List(cmd.Context(), true, 0)
		if err != nil {
			return err
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(spoolResubmitWorkers)
		for _, entry := range entries {
			entry := entry
			g.Go(func() error {
				if _, err := env.Remote.ScoreResults.BatchCreate(ctx, entry.Items); err != nil {
					zap.L().Warn("spool resubmit failed",
						zap.String("entryId", entry.ID),
						zap.Int("items", len(entry.Items)),
						zap.Error(err))
					return nil // keep going; the entry stays pending
				}
				if err := env.Spool.MarkResubmitted(ctx, entry.ID); err != nil {
					return err
				}
				zap.L().Info("resubmitted spooled batch",
					zap.String("entryId", entry.ID),
					zap.Int("items", len(entry.Items)))
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	spoolListCmd.Flags().BoolVar(&spoolListAll, "all", false, "include entries already resubmitted")
	spoolListCmd.Flags().IntVar(&spoolListLimit, "limit", 0, "max entries to list (0 = all)")
	spoolListCmd.Flags().StringVarP(&spoolListOutput, "output", "o", "json", "output format: json or yaml")

	spoolResubmitCmd.Flags().IntVar(&spoolResubmitWorkers, "workers", 4, "concurrent resubmissions")

	spoolCmd.AddCommand(spoolListCmd)
	spoolCmd.AddCommand(spoolResubmitCmd)
	rootCmd.AddCommand(spoolCmd)
}
