package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/kunalmkv/ringbav2-sub000/internal/category"
	"github.com/kunalmkv/ringbav2-sub000/internal/model"
	"github.com/kunalmkv/ringbav2-sub000/internal/recon"
	"github.com/kunalmkv/ringbav2-sub000/internal/resilience"
	"github.com/kunalmkv/ringbav2-sub000/internal/store"
	"github.com/kunalmkv/ringbav2-sub000/pkg/leadsource"
	"github.com/kunalmkv/ringbav2-sub000/pkg/ringba"
)

const dateFlagLayout = "2006-01-02"

func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("database URL is required (RECON_STORE_DATABASE_URL)")
	}
	return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: int32(cfg.Store.MaxConns),
	})
}

func initLeadSource() (leadsource.Client, error) {
	if cfg.LeadSource.Key == "" {
		return nil, eris.New("lead source API key is required (RECON_LEADSOURCE_KEY)")
	}
	opts := []leadsource.Option{
		leadsource.WithPageLimits(cfg.LeadSource.EmptyPageLimit, cfg.LeadSource.MaxPages),
	}
	if cfg.LeadSource.BaseURL != "" {
		opts = append(opts, leadsource.WithBaseURL(cfg.LeadSource.BaseURL))
	}
	return leadsource.NewClient(cfg.LeadSource.Key, opts...), nil
}

func initRingba() (ringba.Client, error) {
	if cfg.Ringba.Key == "" {
		return nil, eris.New("ringba API key is required (RECON_RINGBA_KEY)")
	}
	opts := []ringba.Option{
		ringba.WithPageSize(cfg.Ringba.PageSize),
		ringba.WithRateLimit(cfg.Ringba.WriteRPS),
		ringba.WithRetry(resilience.FromRetryConfig(cfg.Ringba.RetryAttempts, 0, 0, 0, -1)),
	}
	if cfg.Ringba.BaseURL != "" {
		opts = append(opts, ringba.WithBaseURL(cfg.Ringba.BaseURL))
	}
	return ringba.NewClient(cfg.Ringba.Key, opts...), nil
}

func initRunner(st store.Store, leads leadsource.Client, routing ringba.Client) *recon.Runner {
	return recon.NewRunner(st, leads, routing,
		category.NewResolver(cfg.Categories),
		cfg.MatchSettings(),
		cfg.AdjustSettings(),
		cfg.PropagateSettings(),
	)
}

// parseWindow turns --start/--end flag values into a batch window. An empty
// start defaults to yesterday; an empty end defaults to the start day.
func parseWindow(startStr, endStr string) (model.DateRange, error) {
	var start time.Time
	if startStr == "" {
		start = time.Now().UTC().AddDate(0, 0, -1)
	} else {
		var err error
		start, err = time.Parse(dateFlagLayout, startStr)
		if err != nil {
			return model.DateRange{}, eris.Wrapf(err, "invalid --start %q", startStr)
		}
	}

	end := start
	if endStr != "" {
		var err error
		end, err = time.Parse(dateFlagLayout, endStr)
		if err != nil {
			return model.DateRange{}, eris.Wrapf(err, "invalid --end %q", endStr)
		}
	}
	if end.Before(start) {
		return model.DateRange{}, eris.Errorf("--end %s precedes --start %s", endStr, startStr)
	}
	return recon.Window(start, end), nil
}
