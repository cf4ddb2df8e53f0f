package collect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"benritz/duals/internal/types"

	"cloud.google.com/go/civil"
	"github.com/pbnjay/grate"
	_ "github.com/pbnjay/grate/simple"
	_ "github.com/pbnjay/grate/xls"
	_ "github.com/pbnjay/grate/xlsx"
	"go.uber.org/zap"
)

var SourceSpreadsheet = "spreadsheet"

// SpreadsheetCollector reads a reference-rate series from a spreadsheet export
// (xls, xlsx, csv or tsv) where each data row starts with a date followed by
// the rate in percent. The location may be a local path or an http(s) URL.
// The series id passed to Series is ignored.
type SpreadsheetCollector struct {
	location string
	client   *http.Client
	logger   *zap.Logger
}

var _ RateSource = &SpreadsheetCollector{}

func NewSpreadsheetCollector(location string, logger *zap.Logger) *SpreadsheetCollector {
	return &SpreadsheetCollector{
		location: location,
		client:   &http.Client{},
		logger:   logger,
	}
}

func (c *SpreadsheetCollector) Series(ctx context.Context, seriesID int, from, to civil.Date) ([]types.RateObservation, error) {
	path := c.location

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		tmp, err := c.download(ctx, path)
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp)
		path = tmp
	}

	wb, err := grate.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", c.location, err)
	}
	defer wb.Close()

	sheets, err := wb.List()
	if err != nil {
		return nil, err
	}

	obs := []types.RateObservation{}
	skipped := 0

	for _, sheetName := range sheets {
		sheet, err := wb.Get(sheetName)
		if err != nil {
			return nil, err
		}

		for sheet.Next() {
			o, err := parseSeriesRow(sheet.Strings())
			if err != nil {
				skipped++
				continue
			}
			if o.Date.Before(from) || o.Date.After(to) {
				continue
			}
			obs = append(obs, o)
		}
	}

	if len(obs) == 0 && skipped > 0 {
		c.logger.Warn("no usable rows in spreadsheet", zap.String("location", c.location), zap.Int("skipped", skipped))
	}

	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })

	c.logger.Info("read reference series",
		zap.String("location", c.location),
		zap.Int("observations", len(obs)),
		zap.Int("skipped", skipped),
	)

	return obs, nil
}

func (c *SpreadsheetCollector) download(ctx context.Context, url string) (string, error) {
	c.logger.Debug("fetching", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: failed to get data: http %d", types.ErrDataUnavailable, resp.StatusCode)
	}

	// grate picks the reader from the extension
	ext := filepath.Ext(strings.SplitN(url, "?", 2)[0])
	if ext == "" {
		ext = ".xls"
	}

	tmp, err := os.CreateTemp("", "duals-*"+ext)
	if err != nil {
		return "", err
	}

	size, err := io.Copy(tmp, resp.Body)
	tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	c.logger.Debug("downloaded", zap.Int64("bytes", size), zap.String("path", tmp.Name()))

	return tmp.Name(), nil
}

func parseSeriesRow(row []string) (types.RateObservation, error) {
	// delimited exports read as a single column
	if len(row) == 1 {
		row = strings.FieldsFunc(row[0], func(r rune) bool { return r == '\t' || r == ';' })
	}
	if len(row) < 2 {
		return types.RateObservation{}, ErrInvalidRow
	}

	d, err := ParseDate(row[0])
	if err != nil {
		return types.RateObservation{}, ErrInvalidRow
	}

	pct, err := parsePercent(row[1])
	if err != nil {
		return types.RateObservation{}, ErrInvalidRow
	}

	return types.RateObservation{Date: d, Rate: pct / 100}, nil
}

// parsePercent accepts "32.5", "32,5", "1.234,5" and a trailing "%".
func parsePercent(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))

	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	return strconv.ParseFloat(s, 64)
}
