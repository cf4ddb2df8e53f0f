package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path"
	"strings"

	"benritz/duals/internal/config"
	"benritz/duals/internal/types"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

var SourceData912 = "data912"

var (
	symbolKeys   = []string{"symbol", "ticker", "code", "name", "bond"}
	priceKeys    = []string{"last", "price", "close", "p", "c", "px"}
	yieldKeys    = []string{"ytm", "yield", "tirea", "tir", "ear"}
	faceKeys     = []string{"face", "par", "vn"}
	maturityKeys = []string{"maturity", "maturityDate", "due", "vencimiento", "vto"}
)

// Data912Collector scans the data912 live JSON panels for a ticker.
type Data912Collector struct {
	cfg    config.MarketConfig
	logger *zap.Logger
}

var _ QuoteSource = &Data912Collector{}

func NewData912Collector(cfg config.MarketConfig, logger *zap.Logger) *Data912Collector {
	return &Data912Collector{cfg: cfg, logger: logger}
}

// Snapshot visits each endpoint in order until price, yield and maturity
// have all been found. The first value seen for a field wins.
func (c *Data912Collector) Snapshot(ctx context.Context, ticker string) (*Snapshot, error) {
	snap := &Snapshot{Ticker: strings.ToUpper(strings.TrimSpace(ticker))}

	failures := 0
	for _, endpoint := range c.cfg.Endpoints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := c.visit(ctx, endpoint, snap); err != nil {
			c.logger.Warn("quote endpoint failed", zap.String("url", endpoint), zap.Error(err))
			failures++
			continue
		}

		if snap.Complete() {
			break
		}
	}

	if len(c.cfg.Endpoints) > 0 && failures == len(c.cfg.Endpoints) {
		return nil, fmt.Errorf("%w: all %s endpoints failed", types.ErrDataUnavailable, SourceData912)
	}

	c.logger.Info("market snapshot",
		zap.String("ticker", snap.Ticker),
		zap.Bool("price", snap.Price != nil),
		zap.Bool("yield", snap.AnnualYield != nil),
		zap.Bool("maturity", snap.HasMaturity()),
	)

	return snap, nil
}

func (c *Data912Collector) visit(ctx context.Context, endpoint string, snap *Snapshot) error {
	opts := []colly.CollectorOption{colly.AllowURLRevisit(), colly.ParseHTTPErrorResponse()}
	if c.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(c.cfg.UserAgent))
	}
	x := colly.NewCollector(opts...)
	if c.cfg.Timeout > 0 {
		x.SetRequestTimeout(c.cfg.Timeout)
	}

	name := path.Base(endpoint)

	x.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
		r.Headers.Set("Accept", "application/json")
	})

	var visitErr error
	x.OnResponse(func(r *colly.Response) {
		if r.StatusCode != 200 {
			visitErr = fmt.Errorf("http %d", r.StatusCode)
			return
		}

		var data any
		if err := json.Unmarshal(r.Body, &data); err != nil {
			visitErr = fmt.Errorf("decoding %s: %w", name, err)
			return
		}

		scanQuotes(data, name, snap)
	})

	if err := x.Visit(endpoint); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return visitErr
}

// scanQuotes walks any JSON tree for objects whose symbol-like field contains
// the snapshot ticker.
func scanQuotes(node any, source string, snap *Snapshot) {
	switch v := node.(type) {
	case map[string]any:
		if matchesTicker(v, snap.Ticker) {
			fillSnapshot(v, source, snap)
		}
		for _, child := range v {
			scanQuotes(child, source, snap)
		}
	case []any:
		for _, child := range v {
			scanQuotes(child, source, snap)
		}
	}
}

func matchesTicker(obj map[string]any, ticker string) bool {
	for _, k := range symbolKeys {
		if v, ok := obj[k]; ok {
			if strings.Contains(strings.ToUpper(fmt.Sprint(v)), ticker) {
				return true
			}
		}
	}
	return false
}

func fillSnapshot(obj map[string]any, source string, snap *Snapshot) {
	if snap.Price == nil {
		if k, v, ok := firstNumber(obj, priceKeys); ok {
			snap.Price = types.Float(v)
			snap.PriceSource = source + "." + k
		}
	}

	if snap.AnnualYield == nil {
		if k, v, ok := firstNumber(obj, yieldKeys); ok {
			snap.AnnualYield = types.Float(normalizeYield(v))
			snap.YieldSource = source + "." + k
		}
	}

	if snap.FaceValue == nil {
		if k, v, ok := firstNumber(obj, faceKeys); ok {
			snap.FaceValue = types.Float(v)
			snap.FaceSource = source + "." + k
		}
	}

	if !snap.HasMaturity() {
		for _, k := range maturityKeys {
			raw, ok := obj[k]
			if !ok {
				continue
			}
			if d, err := ParseDate(fmt.Sprint(raw)); err == nil {
				snap.Maturity = d
				snap.MaturitySource = source + "." + k
				break
			}
		}
	}
}

func firstNumber(obj map[string]any, keys []string) (string, float64, bool) {
	for _, k := range keys {
		if v, ok := obj[k].(float64); ok && !math.IsNaN(v) {
			return k, v, true
		}
	}
	return "", 0, false
}

// normalizeYield treats values above 1 in magnitude as percentages.
func normalizeYield(v float64) float64 {
	if math.Abs(v) > 1 {
		return v / 100
	}
	return v
}
