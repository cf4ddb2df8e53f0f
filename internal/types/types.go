package types

import (
	"fmt"

	"cloud.google.com/go/civil"
)

type Source string

var (
	SourceProspectus Source = "prospectus"
	SourceMarket     Source = "market"
)

type Method string

var (
	MethodFixedFloor         Method = "fixed_floor"
	MethodReferenceRateFloor Method = "reference_rate_floor"
	MethodYieldDirect        Method = "yield_direct"
	MethodPriceDerived       Method = "price_derived"
)

// DefaultFaceValue is the nominal value prices are quoted against.
const DefaultFaceValue = 100.0

// RateObservation is a single published value of a reference rate, as a decimal
// annual rate (0.36 for 36%).
type RateObservation struct {
	Date civil.Date
	Rate float64
}

// AveragingWindow is the inclusive range of dates whose reference-rate
// observations contribute to the prospectus average.
type AveragingWindow struct {
	Start civil.Date
	End   civil.Date
}

func (w AveragingWindow) Validate() error {
	if w.Start.After(w.End) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidWindow, w.Start, w.End)
	}
	return nil
}

func (w AveragingWindow) Contains(d civil.Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

type BondTerms struct {
	Ticker          string
	IssueDate       civil.Date
	MaturityDate    civil.Date
	FixedMonthlyTEM float64
	SettlementDate  civil.Date
}

func (t BondTerms) Validate() error {
	if !t.IssueDate.IsValid() {
		return fmt.Errorf("%w: issue date", ErrInvalidDate)
	}
	if !t.MaturityDate.IsValid() {
		return fmt.Errorf("%w: maturity date", ErrInvalidDate)
	}
	if !t.MaturityDate.After(t.IssueDate) {
		return fmt.Errorf("%w: maturity %s is not after issue %s", ErrInvalidDate, t.MaturityDate, t.IssueDate)
	}
	return nil
}

// MarketQuote holds whichever market inputs are known. A nil field is absent.
// FaceValue of zero means DefaultFaceValue.
type MarketQuote struct {
	Price       *float64
	AnnualYield *float64
	FaceValue   float64
}

func (q MarketQuote) Face() float64 {
	if q.FaceValue == 0 {
		return DefaultFaceValue
	}
	return q.FaceValue
}

type TEMResult struct {
	Value  float64
	Source Source
	Method Method
}

func Float(v float64) *float64 {
	return &v
}

var (
	ErrDomain           = fmt.Errorf("value outside the domain of the conversion")
	ErrInsufficientData = fmt.Errorf("no reference-rate observations in the averaging window")
	ErrMissingInput     = fmt.Errorf("missing price and yield")
	ErrInvalidWindow    = fmt.Errorf("invalid averaging window")
	ErrInvalidDate      = fmt.Errorf("invalid date")
	ErrUnknownTicker    = fmt.Errorf("unknown ticker")
	ErrDataUnavailable  = fmt.Errorf("data unavailable")
	ErrMissingMaturity  = fmt.Errorf("missing maturity date")
)
