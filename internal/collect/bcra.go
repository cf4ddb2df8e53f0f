package collect

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"benritz/duals/internal/config"
	"benritz/duals/internal/types"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"
)

var SourceBCRA = "BCRA"

// BCRACollector reads reference-rate series from the BCRA monetary statistics API.
type BCRACollector struct {
	baseURL  string
	pageSize int
	client   *http.Client
	logger   *zap.Logger
}

var _ RateSource = &BCRACollector{}

func NewBCRACollector(cfg config.BCRAConfig, logger *zap.Logger) *BCRACollector {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		// the API has served incomplete certificate chains
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 3000
	}

	return &BCRACollector{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		pageSize: pageSize,
		client:   &http.Client{Timeout: cfg.Timeout, Transport: transport},
		logger:   logger,
	}
}

type bcraResponse struct {
	Status   int `json:"status"`
	Metadata struct {
		Resultset struct {
			Count  int `json:"count"`
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
		} `json:"resultset"`
	} `json:"metadata"`
	Results []bcraResult `json:"results"`
}

type bcraResult struct {
	IDVariable  int      `json:"idVariable"`
	Descripcion string   `json:"descripcion"`
	Fecha       string   `json:"fecha"`
	Valor       *float64 `json:"valor"`
}

// Series fetches the observations of seriesID between from and to inclusive.
// Values are published as percentages and returned as decimals.
func (c *BCRACollector) Series(ctx context.Context, seriesID int, from, to civil.Date) ([]types.RateObservation, error) {
	seriesID, err := c.ResolveSeriesID(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%d", c.baseURL, seriesID)
	obs := []types.RateObservation{}

	for offset := 0; ; {
		query := url.Values{}
		query.Set("desde", from.String())
		query.Set("hasta", to.String())
		query.Set("limit", strconv.Itoa(c.pageSize))
		query.Set("offset", strconv.Itoa(offset))

		var resp bcraResponse
		if err := c.getJSON(ctx, endpoint, query, &resp); err != nil {
			return nil, err
		}

		for _, r := range resp.Results {
			if r.Valor == nil {
				continue
			}
			d, err := ParseDate(r.Fecha)
			if err != nil {
				c.logger.Debug("skipping observation", zap.String("fecha", r.Fecha), zap.Error(err))
				continue
			}
			obs = append(obs, types.RateObservation{Date: d, Rate: *r.Valor / 100})
		}

		offset += len(resp.Results)
		count := resp.Metadata.Resultset.Count
		if len(resp.Results) == 0 || (count > 0 && offset >= count) || (count == 0 && len(resp.Results) < c.pageSize) {
			break
		}
	}

	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })

	c.logger.Info("fetched reference series",
		zap.Int("seriesID", seriesID),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Int("observations", len(obs)),
	)

	return obs, nil
}

// ResolveSeriesID returns seriesID, or the discovered TAMAR series when
// seriesID is not positive.
func (c *BCRACollector) ResolveSeriesID(ctx context.Context, seriesID int) (int, error) {
	if seriesID > 0 {
		return seriesID, nil
	}
	return c.DiscoverSeriesID(ctx)
}

// DiscoverSeriesID picks the TAMAR series from the variables listing by
// scoring descriptions.
func (c *BCRACollector) DiscoverSeriesID(ctx context.Context) (int, error) {
	var resp bcraResponse
	if err := c.getJSON(ctx, c.baseURL, nil, &resp); err != nil {
		return 0, err
	}

	bestID, bestScore := 0, 0
	for _, r := range resp.Results {
		if s := scoreDescription(r.Descripcion); s > bestScore {
			bestID, bestScore = r.IDVariable, s
		}
	}

	if bestScore&tamarScore == 0 {
		return 0, fmt.Errorf("%w: no TAMAR series listed", types.ErrDataUnavailable)
	}

	c.logger.Info("discovered reference series", zap.Int("seriesID", bestID))

	return bestID, nil
}

// score bits, most significant first
const (
	tamarScore        = 1 << 3
	privateBanksScore = 1 << 2
	fixedTermScore    = 1 << 1
	largeDepositScore = 1
)

func scoreDescription(desc string) int {
	d := strings.ToLower(desc)
	score := 0
	if strings.Contains(d, "tamar") {
		score |= tamarScore
	}
	if strings.Contains(d, "promedio") && strings.Contains(d, "bancos") && strings.Contains(d, "privados") {
		score |= privateBanksScore
	}
	if strings.Contains(d, "plazo fijo") {
		score |= fixedTermScore
	}
	if strings.Contains(d, "mil millones") || strings.Contains(d, "1.000.000.000") || strings.Contains(d, "1000000000") {
		score |= largeDepositScore
	}
	return score
}

func (c *BCRACollector) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	c.logger.Debug("fetching", zap.String("url", endpoint))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "es-AR")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned http %d", types.ErrDataUnavailable, SourceBCRA, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", types.ErrDataUnavailable, SourceBCRA, err)
	}

	return nil
}
