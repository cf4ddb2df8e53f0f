package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"benritz/duals/internal/calendar"
	"benritz/duals/internal/collect"
	"benritz/duals/internal/config"
	"benritz/duals/internal/rates"
	"benritz/duals/internal/report"
	"benritz/duals/internal/tem"
	"benritz/duals/internal/types"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func d(y int, m time.Month, day int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: day}
}

type fakeRates struct {
	mu       sync.Mutex
	rate     float64
	err      error
	calls    int
	seriesID int
	from, to civil.Date
}

func (f *fakeRates) Series(ctx context.Context, seriesID int, from, to civil.Date) ([]types.RateObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seriesID = seriesID
	f.from, f.to = from, to
	if f.err != nil {
		return nil, f.err
	}

	cal := calendar.Argentina()
	var out []types.RateObservation
	for day := from; !day.After(to); day = day.AddDays(1) {
		if cal.IsBusinessDay(day) {
			out = append(out, types.RateObservation{Date: day, Rate: f.rate})
		}
	}
	return out, nil
}

type fakeQuotes struct {
	mu    sync.Mutex
	snap  collect.Snapshot
	err   error
	calls int
}

func (f *fakeQuotes) Snapshot(ctx context.Context, ticker string) (*collect.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	snap := f.snap
	snap.Ticker = ticker
	return &snap, nil
}

func newTestService(r *fakeRates, q *fakeQuotes) *Service {
	calc := tem.NewCalculator(calendar.Argentina(), rates.Simple, tem.DefaultBusinessDayOffset)
	return NewService(r, q, collect.DefaultTable(), calc, zap.NewNop())
}

func dualRequest(settlement civil.Date) Request {
	return Request{
		Ticker:          "dual",
		Settlement:      settlement,
		IssueDate:       d(2025, 1, 15),
		MaturityDate:    d(2026, 1, 15),
		FixedMonthlyTEM: types.Float(0.025),
		SeriesID:        44,
	}
}

func TestComputeDualWithOverrides(t *testing.T) {
	r := &fakeRates{rate: 0.36}
	q := &fakeQuotes{snap: collect.Snapshot{AnnualYield: types.Float(0.30), YieldSource: "arg_notes.ytm"}}
	svc := newTestService(r, q)

	rep, err := svc.Compute(context.Background(), dualRequest(d(2026, 2, 2)))
	require.NoError(t, err)

	require.Equal(t, "DUAL", rep.Inputs.Ticker)
	require.Equal(t, d(2025, 1, 29), r.from)
	require.Equal(t, d(2025, 12, 31), r.to)

	require.NotNil(t, rep.Prospectus)
	require.Empty(t, rep.Prospectus.Error)
	require.InDelta(t, 0.03, *rep.Prospectus.TEM, 1e-12)
	require.Equal(t, string(types.MethodReferenceRateFloor), rep.Prospectus.Method)
	require.Equal(t, 226, rep.Prospectus.Samples)
	require.Equal(t, "3.00%", rep.Prospectus.TEMPercentString)

	require.Empty(t, rep.Market.Error)
	require.Equal(t, string(types.MethodYieldDirect), rep.Market.Method)
	require.InDelta(t, math.Pow(1.30, 1.0/12)-1, *rep.Market.TEM, 1e-12)
	require.Equal(t, "arg_notes.ytm", rep.Inputs.YieldSource)
	require.Equal(t, report.SourceOverride, rep.Inputs.MaturitySource)
	require.Equal(t, 100.0, rep.Inputs.FaceValue)
	require.True(t, rep.Inputs.UseHolidays)
	require.False(t, rep.Failed())
}

func TestComputeClampsFetchToSettlement(t *testing.T) {
	r := &fakeRates{rate: 0.36}
	svc := newTestService(r, &fakeQuotes{})

	_, err := svc.Compute(context.Background(), dualRequest(d(2025, 6, 30)))
	require.NoError(t, err)
	require.Equal(t, d(2025, 1, 29), r.from)
	require.Equal(t, d(2025, 6, 30), r.to)
}

func TestComputeUsesResolvedSeriesID(t *testing.T) {
	r := &fakeRates{rate: 0.36}
	svc := newTestService(r, &fakeQuotes{})
	svc.seriesID = 44

	req := dualRequest(d(2025, 6, 30))
	req.SeriesID = 0
	rep, err := svc.Compute(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 44, r.seriesID)
	require.Equal(t, 44, rep.Inputs.SeriesID)

	req.SeriesID = 45
	rep, err = svc.Compute(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 45, r.seriesID)
	require.Equal(t, 45, rep.Inputs.SeriesID)
}

func TestComputeBeforeWindowOpens(t *testing.T) {
	r := &fakeRates{rate: 0.36}
	svc := newTestService(r, &fakeQuotes{})

	rep, err := svc.Compute(context.Background(), dualRequest(d(2025, 1, 20)))
	require.NoError(t, err)
	require.Zero(t, r.calls)
	require.Contains(t, rep.Prospectus.Error, types.ErrInsufficientData.Error())
}

func TestComputeKnownTickerWithPriceOverride(t *testing.T) {
	r := &fakeRates{rate: 0.20}
	q := &fakeQuotes{}
	svc := newTestService(r, q)

	rep, err := svc.Compute(context.Background(), Request{
		Ticker:     "TTM26",
		Settlement: d(2025, 3, 7),
		Price:      types.Float(80),
	})
	require.NoError(t, err)

	// quote supplied and maturity known from the table
	require.Zero(t, q.calls)

	require.Equal(t, "2026-03-16", rep.Inputs.MaturityDate)
	require.Equal(t, report.SourceKnownTable, rep.Inputs.MaturitySource)
	require.Equal(t, report.SourceOverride, rep.Inputs.PriceSource)
	require.Equal(t, string(types.MethodPriceDerived), rep.Market.Method)

	tirea, err := rates.PriceToYield(80, 100, d(2026, 3, 16), d(2025, 3, 7), "30E/360")
	require.NoError(t, err)
	require.InDelta(t, tirea, *rep.Market.AnnualYield, 1e-12)

	// TAMAR 20% gives 1.67% a month, below the 2.25% fixed rate
	require.Equal(t, string(types.MethodFixedFloor), rep.Prospectus.Method)
	require.Equal(t, 0.0225, *rep.Prospectus.TEM)
}

func TestComputeFallsBackToOfficialYield(t *testing.T) {
	q := &fakeQuotes{err: types.ErrDataUnavailable}
	svc := newTestService(&fakeRates{rate: 0.36}, q)

	rep, err := svc.Compute(context.Background(), Request{Ticker: "TTJ26", Settlement: d(2025, 3, 7)})
	require.NoError(t, err)
	require.Equal(t, 1, q.calls)

	require.Empty(t, rep.Market.Error)
	require.Equal(t, report.SourceKnownTable, rep.Inputs.YieldSource)
	want, err := rates.AnnualYieldToTEM(0.2965)
	require.NoError(t, err)
	require.InDelta(t, want, *rep.Market.TEM, 1e-12)
}

func TestComputeSnapshotMaturityAndFace(t *testing.T) {
	q := &fakeQuotes{snap: collect.Snapshot{
		Price:          types.Float(950),
		PriceSource:    "arg_bonds.c",
		FaceValue:      types.Float(1000),
		FaceSource:     "arg_bonds.vn",
		Maturity:       d(2026, 3, 16),
		MaturitySource: "arg_bonds.vto",
	}}
	svc := newTestService(&fakeRates{rate: 0.36}, q)

	rep, err := svc.Compute(context.Background(), Request{Ticker: "XYZ26", Settlement: d(2025, 3, 7)})
	require.NoError(t, err)

	require.Nil(t, rep.Prospectus)
	require.Equal(t, "arg_bonds.vto", rep.Inputs.MaturitySource)
	require.Equal(t, 1000.0, rep.Inputs.FaceValue)
	require.Equal(t, string(types.MethodPriceDerived), rep.Market.Method)

	want, err := rates.PriceToYield(950, 1000, d(2026, 3, 16), d(2025, 3, 7), "30E/360")
	require.NoError(t, err)
	require.InDelta(t, want, *rep.Market.AnnualYield, 1e-12)
}

func TestComputeMarketSourcePreference(t *testing.T) {
	q := &fakeQuotes{snap: collect.Snapshot{AnnualYield: types.Float(0.30)}}
	svc := newTestService(&fakeRates{rate: 0.36}, q)

	req := dualRequest(d(2026, 2, 2))
	req.MarketSource = MarketPrice

	rep, err := svc.Compute(context.Background(), req)
	require.NoError(t, err)
	require.Contains(t, rep.Market.Error, types.ErrMissingInput.Error())
	require.Empty(t, rep.Prospectus.Error)
	require.False(t, rep.Failed())

	req.MarketSource = MarketYield
	rep, err = svc.Compute(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, string(types.MethodYieldDirect), rep.Market.Method)
}

func TestComputeSeriesErrorKeepsMarket(t *testing.T) {
	r := &fakeRates{err: types.ErrDataUnavailable}
	q := &fakeQuotes{snap: collect.Snapshot{AnnualYield: types.Float(0.30)}}
	svc := newTestService(r, q)

	rep, err := svc.Compute(context.Background(), dualRequest(d(2026, 2, 2)))
	require.NoError(t, err)
	require.Contains(t, rep.Prospectus.Error, "reference series")
	require.Empty(t, rep.Market.Error)
	require.False(t, rep.Failed())
}

func TestComputeUnknownTickerWithoutData(t *testing.T) {
	svc := newTestService(&fakeRates{rate: 0.36}, &fakeQuotes{})

	rep, err := svc.Compute(context.Background(), Request{Ticker: "AL30", Settlement: d(2025, 3, 7)})
	require.NoError(t, err)
	require.Nil(t, rep.Prospectus)
	require.Equal(t, report.SourceUnavailable, rep.Inputs.MaturitySource)
	require.Contains(t, rep.Market.Error, types.ErrMissingInput.Error())
	require.True(t, rep.Failed())
}

func TestComputeReferenceAverageOverride(t *testing.T) {
	r := &fakeRates{rate: 0.36}
	svc := newTestService(r, &fakeQuotes{})

	req := dualRequest(d(2026, 2, 2))
	req.ReferenceAverage = types.Float(0.42)

	rep, err := svc.Compute(context.Background(), req)
	require.NoError(t, err)
	require.Zero(t, r.calls)
	require.InDelta(t, 0.035, *rep.Prospectus.TEM, 1e-12)
	require.Zero(t, rep.Prospectus.Samples)
}

func TestComputeRejectsBadRequests(t *testing.T) {
	svc := newTestService(&fakeRates{}, &fakeQuotes{})
	ctx := context.Background()

	_, err := svc.Compute(ctx, Request{Settlement: d(2025, 3, 7)})
	require.ErrorIs(t, err, types.ErrMissingInput)

	_, err = svc.Compute(ctx, Request{Ticker: "TTM26"})
	require.ErrorIs(t, err, types.ErrInvalidDate)

	_, err = svc.Compute(ctx, Request{Ticker: "TTM26", Settlement: d(2025, 3, 7), MarketSource: "tamar"})
	require.Error(t, err)
}

func TestComputeAll(t *testing.T) {
	q := &fakeQuotes{err: errors.New("offline")}
	svc := newTestService(&fakeRates{rate: 0.36}, q)

	tickers := []string{"TTM26", "TTJ26", "TTS26", "TTD26"}
	reports, err := svc.ComputeAll(context.Background(), tickers, Request{Settlement: d(2025, 6, 30), SeriesID: 44}, 2)
	require.NoError(t, err)
	require.Len(t, reports, 4)
	for i, rep := range reports {
		require.Equal(t, tickers[i], rep.Inputs.Ticker)
		require.Empty(t, rep.Prospectus.Error)
		require.Empty(t, rep.Market.Error)
	}
}

func TestParseMarketSource(t *testing.T) {
	for in, want := range map[string]MarketSource{"": MarketAuto, "AUTO": MarketAuto, "ytm": MarketYield, " price ": MarketPrice} {
		got, err := ParseMarketSource(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseMarketSource("tamar")
	require.Error(t, err)
}

func TestNewCalculator(t *testing.T) {
	calc, err := NewCalculator(config.ProspectusConfig{BusinessDayOffset: 10, UseHolidays: false, Conversion: "compounded"})
	require.NoError(t, err)
	require.False(t, calc.Calendar().HasHolidays())
	require.Equal(t, rates.Compounded, calc.Convention())

	_, err = NewCalculator(config.ProspectusConfig{Conversion: "continuous"})
	require.Error(t, err)
}
