package tem

import (
	"fmt"
	"sort"

	"benritz/duals/internal/calendar"
	"benritz/duals/internal/rates"
	"benritz/duals/internal/types"

	"cloud.google.com/go/civil"
)

// DefaultBusinessDayOffset is the number of business days the averaging
// window is moved inside the issue and maturity dates.
const DefaultBusinessDayOffset = 10

const lastRatesShown = 5

// Calculator applies the dual-bond prospectus formula. It holds no mutable
// state and is safe for concurrent use.
type Calculator struct {
	calendar   *calendar.Calendar
	convention rates.ReferenceConvention
	offset     int
}

func NewCalculator(cal *calendar.Calendar, convention rates.ReferenceConvention, offset int) *Calculator {
	if cal == nil {
		cal = calendar.Argentina()
	}
	if convention == "" {
		convention = rates.Simple
	}
	return &Calculator{calendar: cal, convention: convention, offset: offset}
}

func (c *Calculator) Calendar() *calendar.Calendar {
	return c.calendar
}

func (c *Calculator) Convention() rates.ReferenceConvention {
	return c.convention
}

// Window derives the averaging window: issue date moved forward and maturity
// date moved backward by the business-day offset. The window is not validated.
func (c *Calculator) Window(terms types.BondTerms) types.AveragingWindow {
	return types.AveragingWindow{
		Start: c.calendar.AddBusinessDays(terms.IssueDate, c.offset),
		End:   c.calendar.AddBusinessDays(terms.MaturityDate, -c.offset),
	}
}

// Prospectus is the prospectus TEM together with the figures it came from.
type Prospectus struct {
	Result       types.TEMResult
	Window       types.AveragingWindow
	AverageRate  float64
	FixedTEM     float64
	ReferenceTEM float64

	// Informational only, not used by the formula.
	Samples     int
	FirstSample civil.Date
	LastSample  civil.Date
	LastRates   []float64
	LatestRate  float64
	LatestTEM   float64
}

// ProspectusTEM computes max(fixed monthly rate, TEM of the averaged reference
// rate) for a dual bond.
func (c *Calculator) ProspectusTEM(terms types.BondTerms, series []types.RateObservation) (types.TEMResult, error) {
	p, err := c.Prospectus(terms, series)
	if err != nil {
		return types.TEMResult{}, err
	}
	return p.Result, nil
}

// Prospectus is ProspectusTEM with the full breakdown.
func (c *Calculator) Prospectus(terms types.BondTerms, series []types.RateObservation) (*Prospectus, error) {
	window := c.Window(terms)

	avg, err := AverageOverWindow(series, window)
	if err != nil {
		return nil, err
	}

	p, err := c.floor(terms, window, avg)
	if err != nil {
		return nil, err
	}

	samples := inWindow(series, window)
	p.Samples = len(samples)
	p.FirstSample = samples[0].Date
	p.LastSample = samples[len(samples)-1].Date

	tail := samples[max(0, len(samples)-lastRatesShown):]
	p.LastRates = make([]float64, 0, len(tail))
	for _, o := range tail {
		p.LastRates = append(p.LastRates, o.Rate)
	}

	p.LatestRate = samples[len(samples)-1].Rate
	if p.LatestTEM, err = c.convention.ToTEM(p.LatestRate); err != nil {
		return nil, fmt.Errorf("latest reference rate: %w", err)
	}

	return p, nil
}

// ProspectusFromAverage applies the floor formula to an averaged reference
// rate obtained elsewhere.
func (c *Calculator) ProspectusFromAverage(terms types.BondTerms, avg float64) (*Prospectus, error) {
	window := c.Window(terms)
	if err := window.Validate(); err != nil {
		return nil, err
	}
	return c.floor(terms, window, avg)
}

func (c *Calculator) floor(terms types.BondTerms, window types.AveragingWindow, avg float64) (*Prospectus, error) {
	refTEM, err := c.convention.ToTEM(avg)
	if err != nil {
		return nil, err
	}

	return &Prospectus{
		Result:       FloorTEM(terms.FixedMonthlyTEM, refTEM),
		Window:       window,
		AverageRate:  avg,
		FixedTEM:     terms.FixedMonthlyTEM,
		ReferenceTEM: refTEM,
	}, nil
}

// FloorTEM is the dual-bond rule: the higher of the fixed and the reference
// TEM. A tie goes to the fixed rate.
func FloorTEM(fixedTEM, referenceTEM float64) types.TEMResult {
	if fixedTEM >= referenceTEM {
		return types.TEMResult{Value: fixedTEM, Source: types.SourceProspectus, Method: types.MethodFixedFloor}
	}
	return types.TEMResult{Value: referenceTEM, Source: types.SourceProspectus, Method: types.MethodReferenceRateFloor}
}

func sortByDate(obs []types.RateObservation) {
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Date.Before(obs[j].Date)
	})
}
