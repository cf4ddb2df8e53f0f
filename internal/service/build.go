package service

import (
	"context"

	"benritz/duals/internal/calendar"
	"benritz/duals/internal/collect"
	"benritz/duals/internal/config"
	"benritz/duals/internal/rates"
	"benritz/duals/internal/tem"

	"go.uber.org/zap"
)

func NewCalculator(cfg config.ProspectusConfig) (*tem.Calculator, error) {
	conv, err := rates.ParseReferenceConvention(cfg.Conversion)
	if err != nil {
		return nil, err
	}

	cal := calendar.Argentina()
	if !cfg.UseHolidays {
		cal = calendar.WeekendsOnly()
	}

	return tem.NewCalculator(cal, conv, cfg.BusinessDayOffset), nil
}

// NewRateSource picks the configured reference-rate source. A Postgres store,
// when configured, backs up the primary source. Its rows are keyed by the real
// series id, so a discovery id (0) in cfg.BCRA.SeriesID is resolved first. The
// returned func releases any connections.
func NewRateSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (collect.RateSource, func(), error) {
	var primary collect.RateSource
	if cfg.BCRA.SeriesFile != "" {
		primary = collect.NewSpreadsheetCollector(cfg.BCRA.SeriesFile, logger.Named("Spreadsheet"))
	} else {
		bcra := collect.NewBCRACollector(cfg.BCRA, logger.Named("BCRA"))
		if cfg.Postgres.DSN != "" {
			cfg.BCRA.SeriesID = resolveSeriesID(ctx, bcra, cfg.BCRA.SeriesID, logger)
		}
		primary = bcra
	}

	if cfg.Postgres.DSN == "" {
		return primary, func() {}, nil
	}

	pg, err := collect.ConnectPostgres(ctx, cfg.Postgres.DSN, logger.Named("Postgres"))
	if err != nil {
		return nil, nil, err
	}

	return collect.Chain{primary, pg}, pg.Close, nil
}

// resolveSeriesID keeps id when discovery fails; the collector retries it on
// every fetch.
func resolveSeriesID(ctx context.Context, bcra *collect.BCRACollector, id int, logger *zap.Logger) int {
	resolved, err := bcra.ResolveSeriesID(ctx, id)
	if err != nil {
		logger.Warn("reference series discovery failed", zap.Error(err))
		return id
	}
	return resolved
}

// New wires a Service from configuration. Requests without a series id use
// cfg.BCRA.SeriesID as resolved by NewRateSource.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Service, func(), error) {
	calc, err := NewCalculator(cfg.Prospectus)
	if err != nil {
		return nil, nil, err
	}

	table, err := collect.DefaultTable().Merge(cfg.Tickers)
	if err != nil {
		return nil, nil, err
	}

	rateSource, closeFn, err := NewRateSource(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	quotes := collect.NewData912Collector(cfg.Market, logger.Named("data912"))

	svc := NewService(rateSource, quotes, table, calc, logger.Named("Service"))
	svc.seriesID = cfg.BCRA.SeriesID

	return svc, closeFn, nil
}
