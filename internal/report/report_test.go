package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"benritz/duals/internal/store"
	"benritz/duals/internal/tem"
	"benritz/duals/internal/types"

	"cloud.google.com/go/civil"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"
)

func TestPercent(t *testing.T) {
	cases := []struct {
		in   float64
		pct  float64
		text string
	}{
		{0.03, 3, "3.00%"},
		{0.035, 3.5, "3.50%"},
		{0.0225, 2.25, "2.25%"},
		{0.022466, 2.25, "2.25%"},
		{0.022444, 2.24, "2.24%"},
		{0, 0, "0.00%"},
		{-0.0015, -0.15, "-0.15%"},
	}
	for _, c := range cases {
		pct, text := Percent(c.in)
		require.Equal(t, c.pct, pct, c.in)
		require.Equal(t, c.text, text, c.in)
	}
}

func sampleProspectus() *tem.Prospectus {
	return &tem.Prospectus{
		Result: types.TEMResult{Value: 0.03, Source: types.SourceProspectus, Method: types.MethodReferenceRateFloor},
		Window: types.AveragingWindow{
			Start: civil.Date{Year: 2025, Month: 1, Day: 29},
			End:   civil.Date{Year: 2025, Month: 12, Day: 31},
		},
		AverageRate:  0.36,
		FixedTEM:     0.0225,
		ReferenceTEM: 0.03,
		Samples:      226,
		FirstSample:  civil.Date{Year: 2025, Month: 1, Day: 29},
		LastSample:   civil.Date{Year: 2025, Month: 12, Day: 31},
		LastRates:    []float64{0.36, 0.36},
		LatestRate:   0.36,
		LatestTEM:    0.03,
	}
}

func TestNewProspectusSection(t *testing.T) {
	s := NewProspectusSection(sampleProspectus())

	require.Equal(t, 0.03, *s.TEM)
	require.Equal(t, "3.00%", s.TEMPercentString)
	require.Equal(t, "reference_rate_floor", s.Method)
	require.Equal(t, "2025-01-29", s.WindowStart)
	require.Equal(t, "2025-12-31", s.WindowEnd)
	require.Equal(t, 226, s.Samples)
	require.Equal(t, "2025-12-31", s.SampleTo)

	// a supplied average has no sample breakdown
	p := sampleProspectus()
	p.Samples = 0
	s = NewProspectusSection(p)
	require.Zero(t, s.Samples)
	require.Nil(t, s.LatestTEM)
	require.Empty(t, s.SampleFrom)
}

func TestNewMarketSection(t *testing.T) {
	s := NewMarketSection(&tem.Market{
		Result:      types.TEMResult{Value: 0.02246, Source: types.SourceMarket, Method: types.MethodYieldDirect},
		AnnualYield: 0.3055,
		FaceValue:   100,
	})
	require.Equal(t, "yield_direct", s.Method)
	require.Equal(t, 2.25, *s.TEMPercent)
	require.Nil(t, s.Price)
	require.Nil(t, s.YearFraction)

	s = NewMarketSection(&tem.Market{
		Result:       types.TEMResult{Value: 0.0176, Source: types.SourceMarket, Method: types.MethodPriceDerived},
		AnnualYield:  0.2333,
		Price:        80,
		FaceValue:    100,
		YearFraction: 346.0 / 360,
	})
	require.Equal(t, 80.0, *s.Price)
	require.InDelta(t, 0.96111, *s.YearFraction, 1e-5)
}

func TestFailed(t *testing.T) {
	ok := NewMarketSection(&tem.Market{Result: types.TEMResult{Value: 0.02}})
	failed := MarketError(types.ErrMissingInput)

	require.True(t, (&Report{}).Failed())
	require.True(t, (&Report{Prospectus: ProspectusError(types.ErrInsufficientData), Market: failed}).Failed())
	require.False(t, (&Report{Market: ok}).Failed())
	require.False(t, (&Report{Prospectus: NewProspectusSection(sampleProspectus()), Market: failed}).Failed())
}

func TestWriteJSON(t *testing.T) {
	r := &Report{
		Inputs: Inputs{
			Ticker:         "TTM26",
			SettlementDate: "2025-03-07",
			MaturitySource: SourceKnownTable,
			FaceValue:      100,
			MarketSource:   "auto",
			SeriesID:       44,
			Conversion:     "simple",
			UseHolidays:    true,
		},
		Prospectus: NewProspectusSection(sampleProspectus()),
		Market:     MarketError(errors.New("missing price & yield")),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r))
	require.Contains(t, buf.String(), "missing price & yield")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	inputs := decoded["inputs"].(map[string]any)
	require.Equal(t, "TTM26", inputs["ticker"])
	require.Nil(t, inputs["price"])
	require.NotContains(t, inputs, "issue_date")

	prospectus := decoded["prospectus"].(map[string]any)
	require.Equal(t, "3.00%", prospectus["tem_percent_str"])
	require.NotContains(t, prospectus, "error")

	market := decoded["market"].(map[string]any)
	require.NotContains(t, market, "tem")
}

func TestStoreRows(t *testing.T) {
	reports := []*Report{
		{
			Inputs:     Inputs{Ticker: "TTM26", SettlementDate: "2025-03-07", MaturityDate: "2026-03-16"},
			Prospectus: NewProspectusSection(sampleProspectus()),
			Market:     MarketError(types.ErrMissingInput),
		},
		{
			Inputs: Inputs{Ticker: "TTJ26", SettlementDate: "2025-03-07"},
			Market: NewMarketSection(&tem.Market{Result: types.TEMResult{Value: 0.0219, Method: types.MethodYieldDirect}, AnnualYield: 0.2965}),
		},
	}

	date := civil.Date{Year: 2025, Month: 3, Day: 7}
	out, err := store.StoreToPath(context.Background(), NewBatch(reports, date), t.TempDir())
	require.NoError(t, err)

	rows, err := parquet.ReadFile[Row](out)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, "TTM26", rows[0].Ticker)
	require.Equal(t, 0.03, *rows[0].ProspectusTEM)
	require.Nil(t, rows[0].MarketTEM)
	require.Equal(t, types.ErrMissingInput.Error(), rows[0].MarketError)

	require.Nil(t, rows[1].ProspectusTEM)
	require.Equal(t, 0.0219, *rows[1].MarketTEM)
	require.Equal(t, "yield_direct", rows[1].MarketMethod)
}
