package main

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kunalmkv/ringbav2-sub000/internal/category"
	"github.com/kunalmkv/ringbav2-sub000/internal/model"
	"github.com/kunalmkv/ringbav2-sub000/internal/normalize"
)

var (
	ingestStart string
	ingestEnd   string
)

// ingestCmd refreshes the routing-ledger mirror without running a full
// reconciliation pass. Useful for backfills before a wide reconcile.
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Refresh the routing-ledger mirror for a date window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "ingest"))

		window, err := parseWindow(ingestStart, ingestEnd)
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

		routing, err := initRingba()
		if err != nil {
			return err
		}

		raw, err := routing.FetchCallsByDateRange(ctx, window.Start, window.End)
		if err != nil {
			return eris.Wrap(err, "fetch routed calls")
		}

		resolver := category.NewResolver(cfg.Categories)
		rows := make([]model.RoutedCall, 0, len(raw))
		for _, rc := range raw {
			if rc.InboundCallID == "" {
				continue
			}
			ts := normalize.Timestamp(rc.CallTime)
			if ts == "" {
				log.Warn("skipping routed call with unparseable time",
					zap.String("inbound_call_id", rc.InboundCallID))
				continue
			}
			payout, err := decimal.NewFromString(rc.Payout)
			if err != nil {
				payout = decimal.Zero
			}
			revenue, err := decimal.NewFromString(rc.Revenue)
			if err != nil {
				revenue = decimal.Zero
			}
			rows = append(rows, model.RoutedCall{
				InboundCallID:   rc.InboundCallID,
				CallerID:        rc.CallerID,
				CallerIDE164:    normalize.Phone(rc.CallerID),
				Timestamp:       ts,
				PayoutAmount:    payout,
				RevenueAmount:   revenue,
				RoutingID:       rc.RoutingID,
				Category:        resolver.Resolve(rc.RoutingID),
				DurationSeconds: rc.DurationSeconds,
			})
		}

		n, err := st.UpsertRoutedCalls(ctx, rows)
		if err != nil {
			return eris.Wrap(err, "upsert routed calls")
		}

		log.Info("routing mirror refreshed",
			zap.Int("fetched", len(raw)),
			zap.Int64("upserted", n),
		)
		cmd.Printf("fetched %d, upserted %d routed calls\n", len(raw), n)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestStart, "start", "", "window start date (YYYY-MM-DD, default yesterday)")
	ingestCmd.Flags().StringVar(&ingestEnd, "end", "", "window end date (YYYY-MM-DD, default --start)")
	rootCmd.AddCommand(ingestCmd)
}
