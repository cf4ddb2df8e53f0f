package service

import (
	"context"
	"fmt"
	"strings"

	"benritz/duals/internal/collect"
	"benritz/duals/internal/report"
	"benritz/duals/internal/tem"
	"benritz/duals/internal/types"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MarketSource restricts which quote input the market TEM is derived from.
type MarketSource string

const (
	MarketAuto  MarketSource = "auto"  // yield, then price
	MarketYield MarketSource = "ytm"   // yield only
	MarketPrice MarketSource = "price" // price only
)

func ParseMarketSource(s string) (MarketSource, error) {
	switch m := MarketSource(strings.ToLower(strings.TrimSpace(s))); m {
	case MarketAuto, MarketYield, MarketPrice:
		return m, nil
	case "":
		return MarketAuto, nil
	}
	return "", fmt.Errorf("unknown market source %q", s)
}

// Request describes one ticker to evaluate. Zero dates and nil pointers mean
// the value was not supplied and is resolved from the collaborators.
type Request struct {
	Ticker     string
	Settlement civil.Date

	IssueDate       civil.Date
	MaturityDate    civil.Date
	FixedMonthlyTEM *float64

	Price       *float64
	AnnualYield *float64
	FaceValue   *float64

	// ReferenceAverage replaces the fetched series average.
	ReferenceAverage *float64
	SeriesID         int
	MarketSource     MarketSource
}

type Service struct {
	rates   collect.RateSource
	quotes  collect.QuoteSource
	tickers collect.TickerLookup
	calc    *tem.Calculator
	logger  *zap.Logger

	// series requested when Request.SeriesID is 0
	seriesID int
}

func NewService(rates collect.RateSource, quotes collect.QuoteSource, tickers collect.TickerLookup, calc *tem.Calculator, logger *zap.Logger) *Service {
	return &Service{
		rates:   rates,
		quotes:  quotes,
		tickers: tickers,
		calc:    calc,
		logger:  logger,
	}
}

// Compute evaluates both calculators for the request. Calculator failures are
// recorded in the report; an error is only returned for an invalid request.
func (s *Service) Compute(ctx context.Context, req Request) (*report.Report, error) {
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker", types.ErrMissingInput)
	}
	if !req.Settlement.IsValid() {
		return nil, fmt.Errorf("%w: settlement date", types.ErrInvalidDate)
	}
	marketSource, err := ParseMarketSource(string(req.MarketSource))
	if err != nil {
		return nil, err
	}

	seriesID := req.SeriesID
	if seriesID == 0 {
		seriesID = s.seriesID
	}

	known, isKnown := s.tickers.Lookup(ticker)
	terms, hasTerms := resolveTerms(ticker, req, known, isKnown)

	var (
		series    []types.RateObservation
		seriesErr error
		snap      *collect.Snapshot
		snapErr   error
	)

	g, gctx := errgroup.WithContext(ctx)

	if from, to, ok := s.fetchRange(terms, hasTerms, req); ok {
		g.Go(func() error {
			series, seriesErr = s.rates.Series(gctx, seriesID, from, to)
			if seriesErr != nil {
				s.logger.Warn("reference series unavailable", zap.String("ticker", ticker), zap.Error(seriesErr))
			}
			return nil
		})
	}

	if s.needsSnapshot(req, hasTerms || isKnown) {
		g.Go(func() error {
			snap, snapErr = s.quotes.Snapshot(gctx, ticker)
			if snapErr != nil {
				s.logger.Warn("market snapshot unavailable", zap.String("ticker", ticker), zap.Error(snapErr))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := &report.Report{
		Inputs: report.Inputs{
			Ticker:         ticker,
			SettlementDate: req.Settlement.String(),
			MarketSource:   string(marketSource),
			SeriesID:       seriesID,
			Conversion:     string(s.calc.Convention()),
			UseHolidays:    s.calc.Calendar().HasHolidays(),
		},
	}

	if hasTerms {
		r.Inputs.IssueDate = terms.IssueDate.String()
		r.Inputs.FixedMonthlyTEM = types.Float(terms.FixedMonthlyTEM)
		r.Prospectus = s.prospectus(terms, req, series, seriesErr)
	}

	r.Market = s.market(ticker, req, marketSource, known, isKnown, snap, snapErr, &r.Inputs)

	s.logger.Info("computed TEM",
		zap.String("ticker", ticker),
		zap.Stringer("settlement", req.Settlement),
		zap.Bool("prospectus", r.Prospectus != nil && r.Prospectus.Error == ""),
		zap.Bool("market", r.Market.Error == ""),
	)

	return r, nil
}

// ComputeAll evaluates several tickers sharing the rest of base, at most
// limit at a time. Reports are returned in ticker order.
func (s *Service) ComputeAll(ctx context.Context, tickers []string, base Request, limit int) ([]*report.Report, error) {
	reports := make([]*report.Report, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			req := base
			req.Ticker = ticker
			r, err := s.Compute(gctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", ticker, err)
			}
			reports[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return reports, nil
}

// resolveTerms merges overrides over the known table. Unknown tickers need
// every term supplied.
func resolveTerms(ticker string, req Request, known collect.KnownTicker, isKnown bool) (types.BondTerms, bool) {
	terms := types.BondTerms{Ticker: ticker, SettlementDate: req.Settlement}
	if isKnown {
		terms.IssueDate = known.IssueDate
		terms.MaturityDate = known.MaturityDate
		terms.FixedMonthlyTEM = known.FixedMonthlyTEM
	}

	if req.IssueDate.IsValid() {
		terms.IssueDate = req.IssueDate
	}
	if req.MaturityDate.IsValid() {
		terms.MaturityDate = req.MaturityDate
	}
	if req.FixedMonthlyTEM != nil {
		terms.FixedMonthlyTEM = *req.FixedMonthlyTEM
	}

	if !isKnown && (!req.IssueDate.IsValid() || !req.MaturityDate.IsValid() || req.FixedMonthlyTEM == nil) {
		return terms, false
	}

	return terms, true
}

// fetchRange is the averaging window clamped to the settlement date, since
// later observations are not published yet.
func (s *Service) fetchRange(terms types.BondTerms, hasTerms bool, req Request) (civil.Date, civil.Date, bool) {
	if !hasTerms || req.ReferenceAverage != nil || s.rates == nil {
		return civil.Date{}, civil.Date{}, false
	}
	if terms.Validate() != nil {
		return civil.Date{}, civil.Date{}, false
	}

	window := s.calc.Window(terms)
	if window.Validate() != nil {
		return civil.Date{}, civil.Date{}, false
	}

	to := window.End
	if req.Settlement.Before(to) {
		to = req.Settlement
	}
	if to.Before(window.Start) {
		return civil.Date{}, civil.Date{}, false
	}

	return window.Start, to, true
}

// needsSnapshot skips the quote source when the caller supplied the quote
// and the maturity is already known.
func (s *Service) needsSnapshot(req Request, maturityKnown bool) bool {
	if s.quotes == nil {
		return false
	}
	explicitQuote := req.Price != nil || req.AnnualYield != nil
	return !explicitQuote || !(maturityKnown || req.MaturityDate.IsValid())
}

func (s *Service) prospectus(terms types.BondTerms, req Request, series []types.RateObservation, seriesErr error) *report.ProspectusSection {
	if err := terms.Validate(); err != nil {
		return report.ProspectusError(err)
	}

	if req.ReferenceAverage != nil {
		p, err := s.calc.ProspectusFromAverage(terms, *req.ReferenceAverage)
		if err != nil {
			return report.ProspectusError(err)
		}
		return report.NewProspectusSection(p)
	}

	if seriesErr != nil {
		return report.ProspectusError(fmt.Errorf("reference series: %w", seriesErr))
	}

	p, err := s.calc.Prospectus(terms, series)
	if err != nil {
		return report.ProspectusError(err)
	}
	return report.NewProspectusSection(p)
}

func (s *Service) market(ticker string, req Request, source MarketSource, known collect.KnownTicker, isKnown bool, snap *collect.Snapshot, snapErr error, in *report.Inputs) *report.MarketSection {
	var quote types.MarketQuote

	// an explicit price or yield replaces the whole snapshot quote
	switch {
	case req.Price != nil || req.AnnualYield != nil:
		quote.Price, quote.AnnualYield = req.Price, req.AnnualYield
		if req.Price != nil {
			in.PriceSource = report.SourceOverride
		}
		if req.AnnualYield != nil {
			in.YieldSource = report.SourceOverride
		}
	case snap != nil:
		quote.Price, quote.AnnualYield = snap.Price, snap.AnnualYield
		in.PriceSource, in.YieldSource = snap.PriceSource, snap.YieldSource
	}

	if quote.Price == nil && quote.AnnualYield == nil && isKnown && known.OfficialTIREA != 0 {
		quote.AnnualYield = types.Float(known.OfficialTIREA)
		in.YieldSource = report.SourceKnownTable
	}

	switch {
	case req.FaceValue != nil:
		quote.FaceValue = *req.FaceValue
		in.FaceSource = report.SourceOverride
	case snap != nil && snap.FaceValue != nil:
		quote.FaceValue = *snap.FaceValue
		in.FaceSource = snap.FaceSource
	default:
		in.FaceSource = report.SourceDefault
	}

	var maturity civil.Date
	switch {
	case req.MaturityDate.IsValid():
		maturity, in.MaturitySource = req.MaturityDate, report.SourceOverride
	case snap != nil && snap.HasMaturity():
		maturity, in.MaturitySource = snap.Maturity, snap.MaturitySource
	case isKnown:
		maturity, in.MaturitySource = known.MaturityDate, report.SourceKnownTable
	default:
		in.MaturitySource = report.SourceUnavailable
	}
	if maturity.IsValid() {
		in.MaturityDate = maturity.String()
	}

	in.Price, in.AnnualYield, in.FaceValue = quote.Price, quote.AnnualYield, quote.Face()

	switch source {
	case MarketYield:
		quote.Price = nil
	case MarketPrice:
		quote.AnnualYield = nil
	}

	terms := types.BondTerms{Ticker: ticker, MaturityDate: maturity, SettlementDate: req.Settlement}
	m, err := tem.MarketFromQuote(quote, terms, req.Settlement)
	if err != nil {
		if snapErr != nil {
			err = fmt.Errorf("%w (quote source: %v)", err, snapErr)
		}
		return report.MarketError(err)
	}

	return report.NewMarketSection(m)
}
