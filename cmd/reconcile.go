package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	reconcileStart    string
	reconcileEnd      string
	reconcileCategory string
	reconcileJSON     bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one full reconciliation pass over a date window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "reconcile"))

		window, err := parseWindow(reconcileStart, reconcileEnd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		leads, err := initLeadSource()
		if err != nil {
			return err
		}
		routing, err := initRingba()
		if err != nil {
			return err
		}

		log.Info("starting reconciliation",
			zap.Time("start", window.Start),
			zap.Time("end", window.End),
			zap.String("category", reconcileCategory),
		)

		sum, err := initRunner(st, leads, routing).Run(ctx, window, reconcileCategory)
		if err != nil {
			return err
		}

		if reconcileJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		}

		cmd.Printf("routed upserted: %d\n", sum.RoutedUpserted)
		cmd.Printf("leads ingested:  %d inserted, %d updated\n", sum.Ingested.Inserted, sum.Ingested.Updated)
		cmd.Printf("matching:        %d matched, %d unmatched\n", sum.Matching.Matched, sum.Matching.Unmatched)
		cmd.Printf("adjustments:     %d applied, %d skipped, %d unmatched, %d failed\n",
			sum.Adjustments.Updated, sum.Adjustments.Skipped, sum.Adjustments.Unmatched, sum.Adjustments.Failed)
		cmd.Printf("propagation:     %d applied, %d preserved, %d failed\n",
			sum.Propagation.Updated, sum.Propagation.Skipped, sum.Propagation.Failed)
		return nil
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileStart, "start", "", "window start date (YYYY-MM-DD, default yesterday)")
	reconcileCmd.Flags().StringVar(&reconcileEnd, "end", "", "window end date (YYYY-MM-DD, default --start)")
	reconcileCmd.Flags().StringVar(&reconcileCategory, "category", "", "restrict the pass to one category")
	reconcileCmd.Flags().BoolVar(&reconcileJSON, "json", false, "emit the summary as JSON")
	rootCmd.AddCommand(reconcileCmd)
}
