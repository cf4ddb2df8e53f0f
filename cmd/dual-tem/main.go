package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"benritz/duals/internal/config"
	"benritz/duals/internal/logging"
	"benritz/duals/internal/report"
	"benritz/duals/internal/service"
	"benritz/duals/internal/types"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfg *config.Config

var errNoResult = errors.New("neither prospectus nor market TEM could be computed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dual-tem <ticker>",
	Short: "Prospectus and market TEM for Argentine dual TAMAR/fixed bonds",
	Long: `Computes the monthly effective rate (TEM) of a bond two ways:

  prospectus  max(fixed TEM, TEM of the TAMAR average over the window from
              issue + 10 business days to maturity - 10 business days)
  market      TEM implied by the quoted yield (TIREA) or by the clean price
              of a bullet bond under 30E/360

Inputs not given as flags are fetched from the BCRA API, data912 and the
built-in table of known duals. The report is printed as JSON.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return applyFlags(cmd)
	},
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("config", "", "config file path (default: ./config/duals.yaml)")
	flags.String("log-level", "", "log level override (debug, info, warn, error)")

	flags.String("settlement", "", "settlement date YYYY-MM-DD (default: today)")
	flags.String("issue", "", "issue date override YYYY-MM-DD")
	flags.String("maturity", "", "maturity date override YYYY-MM-DD")
	flags.Float64("fixed-tem", 0, "fixed monthly TEM override, decimal")

	flags.Float64("price", 0, "clean price override")
	flags.Float64("tirea", 0, "annual effective yield override, decimal")
	flags.Float64("face", 0, "face value the price is quoted against (default: snapshot or 100)")
	flags.String("market-source", "auto", "market TEM input: auto (yield, then price), ytm or price")

	flags.Int("series-id", 0, "BCRA variable id of the reference series, 0 discovers TAMAR (default: from config)")
	flags.Float64("reference-avg", 0, "averaged reference rate override, decimal")
	flags.String("conversion", "", "reference rate to TEM conversion: simple or compounded (default: from config)")
	flags.Bool("no-holidays", false, "count only weekends as non-business days")

	flags.String("out", "", "also store the report under a directory or s3://bucket/prefix")
}

func applyFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()

	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("conversion") {
		cfg.Prospectus.Conversion, _ = flags.GetString("conversion")
	}
	if noHolidays, _ := flags.GetBool("no-holidays"); noHolidays {
		cfg.Prospectus.UseHolidays = false
	}
	if flags.Changed("series-id") {
		cfg.BCRA.SeriesID, _ = flags.GetInt("series-id")
	}
	if flags.Changed("out") {
		cfg.Report.Destination, _ = flags.GetString("out")
	}

	return nil
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	req, err := buildRequest(cmd, args[0])
	if err != nil {
		return err
	}

	svc, closeFn, err := service.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	r, err := svc.Compute(ctx, req)
	if err != nil {
		return err
	}

	if err := report.WriteJSON(cmd.OutOrStdout(), r); err != nil {
		return err
	}

	if dst := cfg.Report.Destination; dst != "" {
		outPath, err := report.Store(ctx, []*report.Report{r}, req.Settlement, dst, cfg.Report.AWSProfile)
		if err != nil {
			return fmt.Errorf("failed to store report: %w", err)
		}
		logger.Info("stored report", zap.String("path", outPath))
	}

	if r.Failed() {
		return errNoResult
	}

	return nil
}

func buildRequest(cmd *cobra.Command, ticker string) (service.Request, error) {
	flags := cmd.Flags()

	req := service.Request{
		Ticker:   ticker,
		SeriesID: cfg.BCRA.SeriesID,
	}

	var err error
	if req.Settlement, err = dateFlag(cmd, "settlement"); err != nil {
		return req, err
	}
	if !req.Settlement.IsValid() {
		req.Settlement = civil.DateOf(time.Now())
	}
	if req.IssueDate, err = dateFlag(cmd, "issue"); err != nil {
		return req, err
	}
	if req.MaturityDate, err = dateFlag(cmd, "maturity"); err != nil {
		return req, err
	}

	req.FixedMonthlyTEM = floatFlag(cmd, "fixed-tem")
	req.Price = floatFlag(cmd, "price")
	req.AnnualYield = floatFlag(cmd, "tirea")
	req.FaceValue = floatFlag(cmd, "face")
	req.ReferenceAverage = floatFlag(cmd, "reference-avg")

	source, _ := flags.GetString("market-source")
	if req.MarketSource, err = service.ParseMarketSource(source); err != nil {
		return req, err
	}

	return req, nil
}

func dateFlag(cmd *cobra.Command, name string) (civil.Date, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return civil.Date{}, nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: --%s %q", types.ErrInvalidDate, name, s)
	}
	return d, nil
}

// floatFlag is nil unless the flag was given.
func floatFlag(cmd *cobra.Command, name string) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetFloat64(name)
	return &v
}
