package tem

import (
	"fmt"

	"benritz/duals/internal/daycount"
	"benritz/duals/internal/rates"
	"benritz/duals/internal/types"

	"cloud.google.com/go/civil"
)

// Market is the market TEM together with the yield it was derived from.
type Market struct {
	Result       types.TEMResult
	AnnualYield  float64
	Price        float64
	FaceValue    float64
	YearFraction float64
}

// MarketTEM derives TEM from the quoted annual yield when present, otherwise
// from the yield implied by the clean price of a bullet bond under 30E/360.
func MarketTEM(quote types.MarketQuote, terms types.BondTerms, settlement civil.Date) (types.TEMResult, error) {
	m, err := MarketFromQuote(quote, terms, settlement)
	if err != nil {
		return types.TEMResult{}, err
	}
	return m.Result, nil
}

// MarketFromQuote is MarketTEM with the full breakdown.
func MarketFromQuote(quote types.MarketQuote, terms types.BondTerms, settlement civil.Date) (*Market, error) {
	return MarketFromQuoteWith(quote, terms, settlement, daycount.Thirty360E)
}

// MarketFromQuoteWith is MarketFromQuote with the year fraction of a
// price-derived yield measured under convention.
func MarketFromQuoteWith(quote types.MarketQuote, terms types.BondTerms, settlement civil.Date, convention daycount.Convention) (*Market, error) {
	m := &Market{
		Result:    types.TEMResult{Source: types.SourceMarket},
		FaceValue: quote.Face(),
	}

	switch {
	case quote.AnnualYield != nil:
		m.AnnualYield = *quote.AnnualYield
		m.Result.Method = types.MethodYieldDirect

	case quote.Price != nil:
		if !terms.MaturityDate.IsValid() {
			return nil, types.ErrMissingMaturity
		}
		tirea, err := rates.PriceToYield(*quote.Price, m.FaceValue, terms.MaturityDate, settlement, convention)
		if err != nil {
			return nil, fmt.Errorf("price %v: %w", *quote.Price, err)
		}
		m.AnnualYield = tirea
		m.Price = *quote.Price
		m.YearFraction = daycount.YearFraction(settlement, terms.MaturityDate, convention)
		m.Result.Method = types.MethodPriceDerived

	default:
		return nil, types.ErrMissingInput
	}

	v, err := rates.AnnualYieldToTEM(m.AnnualYield)
	if err != nil {
		return nil, err
	}
	m.Result.Value = v

	return m, nil
}
