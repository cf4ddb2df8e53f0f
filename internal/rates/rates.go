package rates

import (
	"fmt"
	"math"
	"strings"

	"benritz/duals/internal/daycount"
	"benritz/duals/internal/types"

	"cloud.google.com/go/civil"
)

// ReferenceConvention selects how a nominal annual reference rate (TAMAR) is
// turned into an effective monthly rate.
type ReferenceConvention string

const (
	// Simple divides the nominal annual rate by 12.
	Simple ReferenceConvention = "simple"
	// Compounded capitalises the rate every 32 days over a 365-day year and
	// takes the monthly root of the resulting effective annual rate.
	Compounded ReferenceConvention = "compounded"
)

// compoundingPeriods is the number of 32-day periods in a 365-day year.
const compoundingPeriods = 365.0 / 32.0

func ParseReferenceConvention(s string) (ReferenceConvention, error) {
	switch c := ReferenceConvention(strings.ToLower(strings.TrimSpace(s))); c {
	case Simple, Compounded:
		return c, nil
	case "":
		return Simple, nil
	}
	return "", fmt.Errorf("unknown reference rate convention %q", s)
}

// ToTEM converts a nominal annual reference rate to TEM under the convention.
func (c ReferenceConvention) ToTEM(annualRate float64) (float64, error) {
	switch c {
	case Compounded:
		return CompoundedReferenceRateToTEM(annualRate)
	default:
		return ReferenceRateToTEM(annualRate), nil
	}
}

// ReferenceRateToTEM treats annualRate as a monthly-equivalent nominal annual
// rate, so TEM = annualRate / 12.
func ReferenceRateToTEM(annualRate float64) float64 {
	return annualRate / 12.0
}

// CompoundedReferenceRateToTEM converts using
// TEM = [(1 + r/(365/32))^(365/32)]^(1/12) - 1.
func CompoundedReferenceRateToTEM(annualRate float64) (float64, error) {
	base := 1 + annualRate/compoundingPeriods
	if base <= 0 || math.IsNaN(base) {
		return 0, fmt.Errorf("%w: reference rate %v", types.ErrDomain, annualRate)
	}
	effectiveAnnual := math.Pow(base, compoundingPeriods)
	return math.Pow(effectiveAnnual, 1.0/12.0) - 1, nil
}

// AnnualYieldToTEM converts an effective annual yield (TIREA) to TEM:
// (1 + tirea)^(1/12) - 1. The yield must be greater than -1.
func AnnualYieldToTEM(tirea float64) (float64, error) {
	if tirea <= -1 || math.IsNaN(tirea) {
		return 0, fmt.Errorf("%w: annual yield %v must be greater than -100%%", types.ErrDomain, tirea)
	}
	return math.Pow(1+tirea, 1.0/12.0) - 1, nil
}

// TEMToAnnualYield is the inverse of AnnualYieldToTEM: (1 + tem)^12 - 1.
func TEMToAnnualYield(tem float64) (float64, error) {
	if tem <= -1 || math.IsNaN(tem) {
		return 0, fmt.Errorf("%w: monthly rate %v must be greater than -100%%", types.ErrDomain, tem)
	}
	return math.Pow(1+tem, 12) - 1, nil
}

// PriceToYield solves the effective annual yield implied by a clean price,
// assuming a bullet bond that repays faceValue at maturity with no coupons.
//
// Parameters:
//
//	price:      clean price per faceValue.
//	faceValue:  nominal repaid at maturity, zero means 100.
//	maturity:   maturity date.
//	settlement: settlement date.
//	convention: day count used for the year fraction.
//
// Returns:
//
//	(faceValue/price)^(1/t) - 1, t being the year fraction settlement -> maturity.
func PriceToYield(price, faceValue float64, maturity, settlement civil.Date, convention daycount.Convention) (float64, error) {
	if faceValue == 0 {
		faceValue = types.DefaultFaceValue
	}
	if price <= 0 || math.IsNaN(price) {
		return 0, fmt.Errorf("%w: price %v must be positive", types.ErrDomain, price)
	}
	if faceValue < 0 || math.IsNaN(faceValue) {
		return 0, fmt.Errorf("%w: face value %v must be positive", types.ErrDomain, faceValue)
	}
	if !maturity.After(settlement) {
		return 0, fmt.Errorf("%w: maturity %s must be after settlement %s", types.ErrDomain, maturity, settlement)
	}

	t := daycount.YearFraction(settlement, maturity, convention)
	if t <= 0 {
		return 0, fmt.Errorf("%w: year fraction %v between %s and %s", types.ErrDomain, t, settlement, maturity)
	}

	return math.Pow(faceValue/price, 1/t) - 1, nil
}
