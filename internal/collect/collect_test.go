package collect

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"benritz/duals/internal/config"
	"benritz/duals/internal/types"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseDate(t *testing.T) {
	want := civil.Date{Year: 2026, Month: 3, Day: 16}
	for _, s := range []string{"2026-03-16", "2026/03/16", "16/03/2026", "16-03-2026", "16-Mar-2026", "2026-03-16T00:00:00", " 2026-03-16 "} {
		got, err := ParseDate(s)
		require.NoError(t, err, s)
		require.Equal(t, want, got, s)
	}

	_, err := ParseDate("March 16")
	require.True(t, errors.Is(err, types.ErrInvalidDate))
}

func TestObservationRows(t *testing.T) {
	rows := ObservationRows(44, SourceBCRA, []types.RateObservation{
		{Date: civil.Date{Year: 2025, Month: 1, Day: 29}, Rate: 0.32},
	})
	require.Equal(t, []ObservationRow{{SeriesID: 44, Date: "2025-01-29", Rate: 0.32, Source: "BCRA"}}, rows)
}

func TestParsePercent(t *testing.T) {
	cases := map[string]float64{
		"32.5":    32.5,
		"32,5":    32.5,
		"32,5 %":  32.5,
		"1.234,5": 1234.5,
		"29%":     29,
	}
	for in, want := range cases {
		got, err := parsePercent(in)
		require.NoError(t, err, in)
		require.InDelta(t, want, got, 1e-12, in)
	}

	_, err := parsePercent("n/d")
	require.Error(t, err)
}

func TestParseSeriesRow(t *testing.T) {
	o, err := parseSeriesRow([]string{"29/01/2025", "32,0"})
	require.NoError(t, err)
	require.Equal(t, types.RateObservation{Date: civil.Date{Year: 2025, Month: 1, Day: 29}, Rate: 0.32}, o)

	o, err = parseSeriesRow([]string{"2025-01-30;32,5"})
	require.NoError(t, err)
	require.InDelta(t, 0.325, o.Rate, 1e-12)

	for _, row := range [][]string{nil, {"Fecha", "Valor"}, {"2025-01-29"}, {"2025-01-29", ""}} {
		_, err := parseSeriesRow(row)
		require.ErrorIs(t, err, ErrInvalidRow)
	}
}

func TestSpreadsheetSeries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tamar.tsv")
	content := "Fecha\tValor\n" +
		"31/01/2025\t32,5\n" +
		"29/01/2025\t32,0\n" +
		"03/02/2025\t33,0\n" +
		"28/01/2025\t31,0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c := NewSpreadsheetCollector(path, zap.NewNop())
	obs, err := c.Series(context.Background(), 0, civil.Date{Year: 2025, Month: 1, Day: 29}, civil.Date{Year: 2025, Month: 1, Day: 31})
	require.NoError(t, err)
	require.Len(t, obs, 2)
	require.Equal(t, civil.Date{Year: 2025, Month: 1, Day: 29}, obs[0].Date)
	require.Equal(t, civil.Date{Year: 2025, Month: 1, Day: 31}, obs[1].Date)
	require.InDelta(t, 0.325, obs[1].Rate, 1e-12)
}

func TestKnownTable(t *testing.T) {
	table := DefaultTable()
	require.Equal(t, []string{"TTD26", "TTJ26", "TTM26", "TTS26"}, table.Tickers())

	k, ok := table.Lookup(" ttm26 ")
	require.True(t, ok)
	require.Equal(t, 0.0225, k.FixedMonthlyTEM)
	require.Equal(t, civil.Date{Year: 2026, Month: 3, Day: 16}, k.MaturityDate)

	_, ok = table.Lookup("AL30")
	require.False(t, ok)
}

func TestKnownTableMerge(t *testing.T) {
	merged, err := DefaultTable().Merge(map[string]config.TickerConfig{
		"tx99":  {Issue: "2025-02-14", Maturity: "2027-02-15", FixedMonthlyTEM: 0.019, OfficialTIREA: 0.25},
		"ttm26": {Issue: "2025-01-29", Maturity: "2026-03-16", FixedMonthlyTEM: 0.023},
	})
	require.NoError(t, err)

	k, ok := merged.Lookup("TX99")
	require.True(t, ok)
	require.Equal(t, civil.Date{Year: 2027, Month: 2, Day: 15}, k.MaturityDate)

	k, _ = merged.Lookup("TTM26")
	require.Equal(t, 0.023, k.FixedMonthlyTEM)

	// the default table is untouched
	k, _ = DefaultTable().Lookup("TTM26")
	require.Equal(t, 0.0225, k.FixedMonthlyTEM)

	_, err = DefaultTable().Merge(map[string]config.TickerConfig{"bad": {Issue: "2025-02-14", Maturity: "2024-02-14"}})
	require.Error(t, err)

	_, err = DefaultTable().Merge(map[string]config.TickerConfig{"bad": {Issue: "soon", Maturity: "2024-02-14"}})
	require.Error(t, err)
}

type staticSource struct {
	obs []types.RateObservation
	err error
}

func (s staticSource) Series(ctx context.Context, seriesID int, from, to civil.Date) ([]types.RateObservation, error) {
	return s.obs, s.err
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	from, to := civil.Date{Year: 2025, Month: 1, Day: 1}, civil.Date{Year: 2025, Month: 1, Day: 31}
	obs := []types.RateObservation{{Date: civil.Date{Year: 2025, Month: 1, Day: 29}, Rate: 0.32}}

	got, err := Chain{staticSource{err: types.ErrDataUnavailable}, staticSource{obs: obs}}.Series(ctx, 44, from, to)
	require.NoError(t, err)
	require.Equal(t, obs, got)

	got, err = Chain{staticSource{}, staticSource{}}.Series(ctx, 44, from, to)
	require.NoError(t, err)
	require.Empty(t, got)

	// an empty fallback must not hide the primary failure
	_, err = Chain{staticSource{err: types.ErrDataUnavailable}, staticSource{obs: []types.RateObservation{}}}.Series(ctx, 44, from, to)
	require.ErrorIs(t, err, types.ErrDataUnavailable)

	_, err = Chain{staticSource{}, staticSource{err: types.ErrDataUnavailable}}.Series(ctx, 44, from, to)
	require.ErrorIs(t, err, types.ErrDataUnavailable)

	_, err = Chain{staticSource{err: types.ErrDataUnavailable}, staticSource{err: errors.New("boom")}}.Series(ctx, 44, from, to)
	require.ErrorIs(t, err, types.ErrDataUnavailable)
}
