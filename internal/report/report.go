// Package report assembles the prospectus and market TEM results for a
// ticker into the structure printed by the CLI and stored by the scheduled job.
package report

import (
	"context"
	"encoding/json"
	"io"

	"benritz/duals/internal/store"
	"benritz/duals/internal/tem"
	"benritz/duals/internal/types"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Input sources reported alongside each value.
var (
	SourceOverride    = "override"
	SourceKnownTable  = "known_table"
	SourceDefault     = "default"
	SourceUnavailable = "unavailable"
)

type Report struct {
	Inputs     Inputs             `json:"inputs"`
	Prospectus *ProspectusSection `json:"prospectus"`
	Market     *MarketSection     `json:"market"`
}

type Inputs struct {
	Ticker          string   `json:"ticker"`
	SettlementDate  string   `json:"settlement_date"`
	IssueDate       string   `json:"issue_date,omitempty"`
	MaturityDate    string   `json:"maturity_date,omitempty"`
	MaturitySource  string   `json:"maturity_source"`
	FixedMonthlyTEM *float64 `json:"fixed_monthly_tem,omitempty"`
	FaceValue       float64  `json:"face_value"`
	FaceSource      string   `json:"face_source,omitempty"`
	Price           *float64 `json:"price"`
	PriceSource     string   `json:"price_source,omitempty"`
	AnnualYield     *float64 `json:"annual_yield"`
	YieldSource     string   `json:"annual_yield_source,omitempty"`
	MarketSource    string   `json:"market_source"`
	SeriesID        int      `json:"series_id"`
	Conversion      string   `json:"conversion"`
	UseHolidays     bool     `json:"use_holidays"`
}

type ProspectusSection struct {
	TEM              *float64  `json:"tem,omitempty"`
	TEMPercent       *float64  `json:"tem_percent,omitempty"`
	TEMPercentString string    `json:"tem_percent_str,omitempty"`
	Method           string    `json:"method,omitempty"`
	WindowStart      string    `json:"window_start,omitempty"`
	WindowEnd        string    `json:"window_end,omitempty"`
	ReferenceAverage *float64  `json:"reference_average,omitempty"`
	FixedTEM         *float64  `json:"fixed_tem,omitempty"`
	ReferenceTEM     *float64  `json:"reference_tem,omitempty"`
	Samples          int       `json:"samples,omitempty"`
	SampleFrom       string    `json:"sample_from,omitempty"`
	SampleTo         string    `json:"sample_to,omitempty"`
	LastRates        []float64 `json:"last_rates,omitempty"`
	LatestRate       *float64  `json:"latest_rate,omitempty"`
	LatestTEM        *float64  `json:"latest_tem,omitempty"`
	Error            string    `json:"error,omitempty"`
}

type MarketSection struct {
	TEM              *float64 `json:"tem,omitempty"`
	TEMPercent       *float64 `json:"tem_percent,omitempty"`
	TEMPercentString string   `json:"tem_percent_str,omitempty"`
	Method           string   `json:"method,omitempty"`
	AnnualYield      *float64 `json:"annual_yield,omitempty"`
	Price            *float64 `json:"price,omitempty"`
	FaceValue        *float64 `json:"face_value,omitempty"`
	YearFraction     *float64 `json:"year_fraction,omitempty"`
	Error            string   `json:"error,omitempty"`
}

func NewProspectusSection(p *tem.Prospectus) *ProspectusSection {
	pct, str := Percent(p.Result.Value)
	s := &ProspectusSection{
		TEM:              types.Float(p.Result.Value),
		TEMPercent:       types.Float(pct),
		TEMPercentString: str,
		Method:           string(p.Result.Method),
		WindowStart:      p.Window.Start.String(),
		WindowEnd:        p.Window.End.String(),
		ReferenceAverage: types.Float(p.AverageRate),
		FixedTEM:         types.Float(p.FixedTEM),
		ReferenceTEM:     types.Float(p.ReferenceTEM),
	}

	// breakdown is only present when computed from a series
	if p.Samples > 0 {
		s.Samples = p.Samples
		s.SampleFrom = p.FirstSample.String()
		s.SampleTo = p.LastSample.String()
		s.LastRates = p.LastRates
		s.LatestRate = types.Float(p.LatestRate)
		s.LatestTEM = types.Float(p.LatestTEM)
	}

	return s
}

func ProspectusError(err error) *ProspectusSection {
	return &ProspectusSection{Error: err.Error()}
}

func NewMarketSection(m *tem.Market) *MarketSection {
	pct, str := Percent(m.Result.Value)
	s := &MarketSection{
		TEM:              types.Float(m.Result.Value),
		TEMPercent:       types.Float(pct),
		TEMPercentString: str,
		Method:           string(m.Result.Method),
		AnnualYield:      types.Float(m.AnnualYield),
		FaceValue:        types.Float(m.FaceValue),
	}
	if m.Price > 0 {
		s.Price = types.Float(m.Price)
		s.YearFraction = types.Float(m.YearFraction)
	}
	return s
}

func MarketError(err error) *MarketSection {
	return &MarketSection{Error: err.Error()}
}

// Failed reports whether neither calculator produced a value.
func (r *Report) Failed() bool {
	prospectusOK := r.Prospectus != nil && r.Prospectus.Error == ""
	marketOK := r.Market != nil && r.Market.Error == ""
	return !prospectusOK && !marketOK
}

// Percent converts a decimal rate to a percentage rounded half away from zero
// to two places, and its "x.xx%" rendering.
func Percent(v float64) (float64, string) {
	d := decimal.NewFromFloat(v).Shift(2).Round(2)
	f, _ := d.Float64()
	return f, d.StringFixed(2) + "%"
}

func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Row is the flattened, stored form of a report.
type Row struct {
	Ticker           string   `parquet:"ticker"`
	SettlementDate   string   `parquet:"settlement_date"`
	MaturityDate     string   `parquet:"maturity_date"`
	ProspectusTEM    *float64 `parquet:"prospectus_tem,optional"`
	ProspectusMethod string   `parquet:"prospectus_method"`
	ReferenceAverage *float64 `parquet:"reference_average,optional"`
	ProspectusError  string   `parquet:"prospectus_error"`
	MarketTEM        *float64 `parquet:"market_tem,optional"`
	MarketMethod     string   `parquet:"market_method"`
	AnnualYield      *float64 `parquet:"annual_yield,optional"`
	Price            *float64 `parquet:"price,optional"`
	MarketError      string   `parquet:"market_error"`
}

func (r *Report) Row() Row {
	row := Row{
		Ticker:         r.Inputs.Ticker,
		SettlementDate: r.Inputs.SettlementDate,
		MaturityDate:   r.Inputs.MaturityDate,
	}
	if p := r.Prospectus; p != nil {
		row.ProspectusTEM = p.TEM
		row.ProspectusMethod = p.Method
		row.ReferenceAverage = p.ReferenceAverage
		row.ProspectusError = p.Error
	}
	if m := r.Market; m != nil {
		row.MarketTEM = m.TEM
		row.MarketMethod = m.Method
		row.AnnualYield = m.AnnualYield
		row.Price = m.Price
		row.MarketError = m.Error
	}
	return row
}

const batchName = "tem"

func NewBatch(reports []*Report, date civil.Date) *store.Batch[Row] {
	rows := make([]Row, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, r.Row())
	}
	return &store.Batch[Row]{Rows: rows, Name: batchName, Date: date}
}

// Store writes the reports as one parquet file under dst, a directory or
// s3://bucket/prefix, partitioned by date.
func Store(ctx context.Context, reports []*Report, date civil.Date, dst, awsProfile string) (string, error) {
	return store.Store(ctx, NewBatch(reports, date), dst, awsProfile)
}
