package app

import (
	"context"
	"time"
)

// StartRateScheduler refreshes the foreign-currency exchange rate on a
// fixed interval so portfolio valuations never wait on the provider.
func (a *App) StartRateScheduler() {
	ctx, cancel := context.WithCancel(context.Background())
	a.schedulerCancel = cancel

	interval := a.Config.Rates.GetRefreshInterval()
	go a.runRateScheduler(ctx, interval)
}

func (a *App) runRateScheduler(ctx context.Context, interval time.Duration) {
	// Prime the rate once at startup so the first valuation is fast.
	a.refreshRates(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.Logger.Info().Msg("Rate scheduler: stopped")
			return
		case <-ticker.C:
			a.refreshRates(ctx)
		}
	}
}

func (a *App) refreshRates(ctx context.Context) {
	foreign := "USD"
	if a.Config.ReportingCurrency == "USD" {
		foreign = "KRW"
	}

	refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	rate, err := a.RateService.Refresh(refreshCtx, foreign)
	if err != nil {
		a.Logger.Warn().Err(err).Str("from", foreign).Msg("Rate refresh failed")
		return
	}
	a.Logger.Info().
		Str("from", foreign).
		Str("to", a.Config.ReportingCurrency).
		Float64("rate", rate).
		Dur("elapsed", time.Since(start)).
		Msg("Rate refresh: complete")
}
