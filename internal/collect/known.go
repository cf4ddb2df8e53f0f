package collect

import (
	"fmt"
	"sort"
	"strings"

	"benritz/duals/internal/config"

	"cloud.google.com/go/civil"
)

// KnownTicker is a dual bond whose prospectus terms are known ahead of time.
type KnownTicker struct {
	Ticker          string
	IssueDate       civil.Date
	MaturityDate    civil.Date
	FixedMonthlyTEM float64
	OfficialTIREA   float64 // fallback annual yield when no quote is available
}

type TickerLookup interface {
	Lookup(ticker string) (KnownTicker, bool)
}

// Table maps upper-case tickers to their terms.
type Table map[string]KnownTicker

var _ TickerLookup = Table{}

// DefaultTable returns the dual TAMAR/fixed bonds issued in the January 2025
// conversion.
func DefaultTable() Table {
	issue := civil.Date{Year: 2025, Month: 1, Day: 29}
	return Table{
		"TTM26": {Ticker: "TTM26", IssueDate: issue, MaturityDate: civil.Date{Year: 2026, Month: 3, Day: 16}, FixedMonthlyTEM: 0.0225, OfficialTIREA: 0.3055},
		"TTJ26": {Ticker: "TTJ26", IssueDate: issue, MaturityDate: civil.Date{Year: 2026, Month: 6, Day: 30}, FixedMonthlyTEM: 0.0219, OfficialTIREA: 0.2965},
		"TTS26": {Ticker: "TTS26", IssueDate: issue, MaturityDate: civil.Date{Year: 2026, Month: 9, Day: 15}, FixedMonthlyTEM: 0.0217, OfficialTIREA: 0.2931},
		"TTD26": {Ticker: "TTD26", IssueDate: issue, MaturityDate: civil.Date{Year: 2026, Month: 12, Day: 15}, FixedMonthlyTEM: 0.0214, OfficialTIREA: 0.2893},
	}
}

func (t Table) Lookup(ticker string) (KnownTicker, bool) {
	k, ok := t[strings.ToUpper(strings.TrimSpace(ticker))]
	return k, ok
}

func (t Table) Tickers() []string {
	tickers := make([]string, 0, len(t))
	for k := range t {
		tickers = append(tickers, k)
	}
	sort.Strings(tickers)
	return tickers
}

// Merge returns a copy of t with the configured tickers added or replaced.
func (t Table) Merge(tickers map[string]config.TickerConfig) (Table, error) {
	merged := make(Table, len(t)+len(tickers))
	for k, v := range t {
		merged[k] = v
	}

	for name, tc := range tickers {
		ticker := strings.ToUpper(strings.TrimSpace(name))

		issue, err := civil.ParseDate(tc.Issue)
		if err != nil {
			return nil, fmt.Errorf("ticker %s: issue: %w", ticker, err)
		}
		maturity, err := civil.ParseDate(tc.Maturity)
		if err != nil {
			return nil, fmt.Errorf("ticker %s: maturity: %w", ticker, err)
		}
		if !maturity.After(issue) {
			return nil, fmt.Errorf("ticker %s: maturity %s is not after issue %s", ticker, maturity, issue)
		}

		merged[ticker] = KnownTicker{
			Ticker:          ticker,
			IssueDate:       issue,
			MaturityDate:    maturity,
			FixedMonthlyTEM: tc.FixedMonthlyTEM,
			OfficialTIREA:   tc.OfficialTIREA,
		}
	}

	return merged, nil
}
