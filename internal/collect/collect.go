package collect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"benritz/duals/internal/types"

	"cloud.google.com/go/civil"
)

var (
	ErrInvalidRow = fmt.Errorf("invalid row")
)

// RateSource supplies reference-rate observations for a series, ascending by date.
type RateSource interface {
	Series(ctx context.Context, seriesID int, from, to civil.Date) ([]types.RateObservation, error)
}

// QuoteSource supplies the latest market snapshot for a ticker.
type QuoteSource interface {
	Snapshot(ctx context.Context, ticker string) (*Snapshot, error)
}

// Snapshot holds whatever a quote source could find for a ticker. Each value
// carries the endpoint and field it was read from.
type Snapshot struct {
	Ticker string

	Price       *float64
	PriceSource string

	AnnualYield *float64
	YieldSource string

	FaceValue  *float64
	FaceSource string

	Maturity       civil.Date
	MaturitySource string
}

func (s *Snapshot) HasMaturity() bool {
	return s.Maturity.IsValid()
}

// Complete reports whether price, yield and maturity were all found.
func (s *Snapshot) Complete() bool {
	return s.Price != nil && s.AnnualYield != nil && s.HasMaturity()
}

func (s *Snapshot) Empty() bool {
	return s.Price == nil && s.AnnualYield == nil && s.FaceValue == nil && !s.HasMaturity()
}

// ObservationRow is the stored layout of a reference-rate observation.
type ObservationRow struct {
	SeriesID int32   `parquet:"series_id"`
	Date     string  `parquet:"date"`
	Rate     float64 `parquet:"rate"`
	Source   string  `parquet:"source"`
}

func ObservationRows(seriesID int, source string, obs []types.RateObservation) []ObservationRow {
	rows := make([]ObservationRow, 0, len(obs))
	for _, o := range obs {
		rows = append(rows, ObservationRow{
			SeriesID: int32(seriesID),
			Date:     o.Date.String(),
			Rate:     o.Rate,
			Source:   source,
		})
	}
	return rows
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02-Jan-2006",
}

// ParseDate accepts the date layouts seen in rate and quote feeds. A trailing
// time component is ignored.
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i == 10 {
		s = s[:i]
	}

	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(ts), nil
		}
	}

	return civil.Date{}, fmt.Errorf("%w: %q", types.ErrInvalidDate, s)
}

// Chain tries each source in order and returns the first non-empty series.
// When no source has observations, the errors of those that failed are
// returned joined.
type Chain []RateSource

var _ RateSource = Chain{}

func (c Chain) Series(ctx context.Context, seriesID int, from, to civil.Date) ([]types.RateObservation, error) {
	var errs []error
	for _, src := range c {
		obs, err := src.Series(ctx, seriesID, from, to)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(obs) > 0 {
			return obs, nil
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return []types.RateObservation{}, nil
}
