package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"benritz/duals/internal/collect"
	"benritz/duals/internal/config"
	"benritz/duals/internal/logging"
	"benritz/duals/internal/store"
	"benritz/duals/internal/types"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"
)

func parseDate(s string, def civil.Date) (civil.Date, error) {
	if s == "" {
		return def, nil
	}
	return civil.ParseDate(s)
}

func storeToPostgres(ctx context.Context, dsn string, seriesID int, source string, obs []types.RateObservation, logger *zap.Logger) (string, error) {
	pg, err := collect.ConnectPostgres(ctx, dsn, logger.Named("Postgres"))
	if err != nil {
		return "", err
	}
	defer pg.Close()

	if err := pg.Upsert(ctx, seriesID, source, obs); err != nil {
		return "", err
	}

	return "postgres reference_rates", nil
}

func main() {
	ctx := context.Background()

	configFile := flag.String("config", "", "config file path (default: ./config/duals.yaml)")
	profile := flag.String("profile", "", "the AWS profile to use (default: from config)")
	seriesID := flag.Int("series-id", -1, "BCRA variable id, 0 discovers TAMAR (default: from config)")
	fromStr := flag.String("from", "", "first date YYYY-MM-DD (default: 30 days before -to)")
	toStr := flag.String("to", "", "last date YYYY-MM-DD (default: today)")
	file := flag.String("file", "", "read the series from a spreadsheet path or URL instead of the API")
	helpFlag := flag.Bool("help", false, "print this help message")
	flag.Parse()
	args := flag.Args()

	if len(args) != 1 || *helpFlag {
		fmt.Printf("Usage: %s <flags> <destination>\n", filepath.Base(os.Args[0]))
		fmt.Printf("  destination is a directory, s3://bucket/prefix or postgres://...\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	dst := args[0]

	var (
		cfg *config.Config
		err error
	)
	if *configFile != "" {
		cfg, err = config.LoadFromFile(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *seriesID >= 0 {
		cfg.BCRA.SeriesID = *seriesID
	}
	if *profile != "" {
		cfg.Report.AWSProfile = *profile
	}

	to, err := parseDate(*toStr, civil.DateOf(time.Now()))
	if err != nil {
		fmt.Printf("Invalid -to date: %v\n", err)
		os.Exit(1)
	}
	from, err := parseDate(*fromStr, to.AddDays(-30))
	if err != nil {
		fmt.Printf("Invalid -from date: %v\n", err)
		os.Exit(1)
	}

	var (
		collector collect.RateSource
		source    string
	)
	if *file != "" {
		collector, source = collect.NewSpreadsheetCollector(*file, logger.Named("Spreadsheet")), collect.SourceSpreadsheet
	} else {
		bcra := collect.NewBCRACollector(cfg.BCRA, logger.Named("BCRA"))
		if cfg.BCRA.SeriesID == 0 {
			// resolve once so stored rows carry the real id
			if cfg.BCRA.SeriesID, err = bcra.DiscoverSeriesID(ctx); err != nil {
				fmt.Printf("Failed to discover series: %v\n", err)
				os.Exit(1)
			}
		}
		collector, source = bcra, collect.SourceBCRA
	}

	obs, err := collector.Series(ctx, cfg.BCRA.SeriesID, from, to)
	if err == nil && len(obs) == 0 {
		err = types.ErrDataUnavailable
	}
	if err != nil {
		if errors.Is(err, types.ErrDataUnavailable) {
			fmt.Printf("Data unavailable: %v\n", err)
		} else {
			fmt.Printf("Failed to collect data: %v\n", err)
		}
		os.Exit(1)
	}

	var outPath string
	if strings.HasPrefix(dst, "postgres://") || strings.HasPrefix(dst, "postgresql://") {
		outPath, err = storeToPostgres(ctx, dst, cfg.BCRA.SeriesID, source, obs, logger)
	} else {
		batch := &store.Batch[collect.ObservationRow]{
			Rows: collect.ObservationRows(cfg.BCRA.SeriesID, source, obs),
			Name: fmt.Sprintf("reference-%d", cfg.BCRA.SeriesID),
			Date: to,
		}
		outPath, err = store.Store(ctx, batch, dst, cfg.Report.AWSProfile)
	}

	if err != nil {
		fmt.Printf("Failed to store data: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Stored %d observations to %s\n", len(obs), outPath)
}
