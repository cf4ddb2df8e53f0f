package main

import (
	"flag"
	"fmt"
	"time"

	"benritz/duals/internal/daycount"
	"benritz/duals/internal/rates"
	"benritz/duals/internal/report"
	"benritz/duals/internal/tem"
	"benritz/duals/internal/types"

	"cloud.google.com/go/civil"
)

func parseDate(s *string) (civil.Date, error) {
	if s == nil || *s == "" {
		return civil.DateOf(time.Now()), nil
	}
	return civil.ParseDate(*s)
}

func percent(v float64) string {
	_, s := report.Percent(v)
	return s
}

func main() {
	faceValue := flag.Float64("facevalue", 100, "Face value the price is quoted against")
	price := flag.Float64("price", 0.0, "Clean price of the bond")
	tirea := flag.Float64("tirea", 0.0, "Annual effective yield (decimal)")
	reference := flag.Float64("reference", 0.0, "Nominal annual reference rate, e.g. TAMAR (decimal)")
	fixedTEM := flag.Float64("fixedtem", 0.0, "Fixed monthly TEM of a dual bond (decimal)")
	conversion := flag.String("conversion", "simple", "Reference rate conversion: simple or compounded")
	conventionStr := flag.String("convention", string(daycount.Thirty360E), "Day count convention for price to yield: 30E/360, ACT/360 or ACT/365F")
	settlementDateStr := flag.String("settlementdate", "", "Settlement date of the bond (YYYY-MM-DD)")
	maturityDateStr := flag.String("maturitydate", "", "Maturity date of the bond (YYYY-MM-DD)")

	flag.Parse()

	flagsSet := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		flagsSet[f.Name] = true
	})

	if !flagsSet["price"] && !flagsSet["tirea"] && !flagsSet["reference"] {
		fmt.Println("Error: -price, -tirea or -reference flag is required")
		return
	}

	if flagsSet["reference"] {
		conv, err := rates.ParseReferenceConvention(*conversion)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		refTEM, err := conv.ToTEM(*reference)
		if err != nil {
			fmt.Printf("Error converting reference rate: %v\n", err)
			return
		}

		fmt.Printf("Reference Rate:\n")
		fmt.Printf("\tConversion: %s\n", conv)
		fmt.Printf("\tAnnual Rate: %.6f\n", *reference)
		fmt.Printf("\tTEM: %.8f (%s)\n", refTEM, percent(refTEM))

		if flagsSet["fixedtem"] {
			res := tem.FloorTEM(*fixedTEM, refTEM)
			fmt.Printf("\tFixed TEM: %.8f (%s)\n", *fixedTEM, percent(*fixedTEM))
			fmt.Printf("\tProspectus TEM: %.8f (%s, %s)\n", res.Value, percent(res.Value), res.Method)
		}
	}

	if !flagsSet["price"] && !flagsSet["tirea"] {
		return
	}

	convention, err := daycount.ParseConvention(*conventionStr)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	settlementDate, err := parseDate(settlementDateStr)
	if err != nil {
		fmt.Printf("Error: invalid settlement date: %v\n", err)
		return
	}

	quote := types.MarketQuote{FaceValue: *faceValue}
	if flagsSet["tirea"] {
		quote.AnnualYield = tirea
	} else {
		quote.Price = price
	}

	var maturityDate civil.Date
	if flagsSet["maturitydate"] {
		if maturityDate, err = parseDate(maturityDateStr); err != nil {
			fmt.Printf("Error: invalid maturity date: %v\n", err)
			return
		}
	}

	if *faceValue <= 0.0 {
		fmt.Println("Error: face value must be greater than 0.0")
		return
	}

	m, err := tem.MarketFromQuoteWith(quote, types.BondTerms{MaturityDate: maturityDate}, settlementDate, convention)
	if err != nil {
		fmt.Printf("Error computing market TEM: %v\n", err)
		return
	}

	fmt.Printf("Market:\n")
	fmt.Printf("\tMethod: %s\n", m.Result.Method)
	fmt.Printf("\tFace Value: %.3f\n", m.FaceValue)
	fmt.Printf("\tSettlement Date: %s\n", settlementDate)
	if m.Result.Method == types.MethodPriceDerived {
		fmt.Printf("\tMaturity Date: %s\n", maturityDate)
		fmt.Printf("\tClean Price: %.3f\n", m.Price)
		fmt.Printf("\tDays (%s): %d\n", convention, daycount.Days(settlementDate, maturityDate, convention))
		fmt.Printf("\tYear Fraction: %.6f\n", m.YearFraction)
	}
	fmt.Printf("\tAnnual Yield: %.6f (%s)\n", m.AnnualYield, percent(m.AnnualYield))
	fmt.Printf("\tTEM: %.8f (%s)\n", m.Result.Value, percent(m.Result.Value))
}
