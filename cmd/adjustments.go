package main

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kunalmkv/ringbav2-sub000/internal/adjust"
	"github.com/kunalmkv/ringbav2-sub000/internal/model"
	"github.com/kunalmkv/ringbav2-sub000/internal/normalize"
)

var (
	adjustStart string
	adjustEnd   string
)

// adjustmentsCmd merges adjustment events against already-persisted calls.
// Runs the store passes and the placeholder fallback only; there is no
// in-flight batch outside a full reconcile.
var adjustmentsCmd = &cobra.Command{
	Use:   "adjustments",
	Short: "Fetch and merge payout adjustments for a date window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "adjustments"))

		window, err := parseWindow(adjustStart, adjustEnd)
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

		raw, err := leads.FetchAdjustments(ctx, window.Start, window.End)
		if err != nil {
			return eris.Wrap(err, "fetch adjustments")
		}

		events := make([]model.AdjustmentEvent, 0, len(raw))
		for _, ra := range raw {
			amount, err := decimal.NewFromString(ra.Amount)
			if err != nil {
				log.Warn("skipping adjustment with unparseable amount",
					zap.String("caller", ra.CallerID),
					zap.String("raw_amount", ra.Amount))
				continue
			}
			events = append(events, model.AdjustmentEvent{
				CallerID:       ra.CallerID,
				CallerIDE164:   normalize.Phone(ra.CallerID),
				TimeOfCall:     normalize.Timestamp(ra.TimeOfCall),
				AdjustmentTime: normalize.Timestamp(ra.AdjustmentTime),
				Amount:         amount,
				Classification: ra.Classification,
				DurationSec:    ra.DurationSeconds,
			})
		}

		eng := adjust.New(st, cfg.AdjustSettings())
		rep := eng.Merge(ctx, events, nil, window)

		log.Info("adjustment merge complete",
			zap.Int("events", len(events)),
			zap.Int("applied", rep.Updated),
			zap.Int("skipped", rep.Skipped),
			zap.Int("unmatched", rep.Unmatched),
			zap.Int("failed", rep.Failed),
		)
		cmd.Printf("%d events: %d applied, %d skipped, %d unmatched, %d failed\n",
			len(events), rep.Updated, rep.Skipped, rep.Unmatched, rep.Failed)
		return nil
	},
}

func init() {
	adjustmentsCmd.Flags().StringVar(&adjustStart, "start", "", "window start date (YYYY-MM-DD, default yesterday)")
	adjustmentsCmd.Flags().StringVar(&adjustEnd, "end", "", "window end date (YYYY-MM-DD, default --start)")
	rootCmd.AddCommand(adjustmentsCmd)
}
