package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"benritz/duals/internal/config"
	"benritz/duals/internal/logging"
	"benritz/duals/internal/report"
	"benritz/duals/internal/service"
	"benritz/duals/internal/store"

	"cloud.google.com/go/civil"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

// read through config, which maps DUALS_LAMBDA_BUCKET to lambda.bucket
var ENV_BUCKET_NAME = "DUALS_LAMBDA_BUCKET"

const concurrentTickers = 4

var errNoTickers = errors.New("lambda.tickers is empty")

// countFailed logs the reports without a TEM and fails when none has one.
func countFailed(reports []*report.Report, logger *zap.Logger) (int, error) {
	if len(reports) == 0 {
		return 0, errNoTickers
	}

	failed := 0
	for _, r := range reports {
		if r.Failed() {
			failed++
			logger.Warn("no TEM computed", zap.String("ticker", r.Inputs.Ticker))
		}
	}
	if failed == len(reports) {
		return failed, fmt.Errorf("no TEM computed for any of %d tickers", len(reports))
	}

	return failed, nil
}

func computeReports(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	bucketName := cfg.Lambda.Bucket
	if bucketName == "" {
		return fmt.Errorf("%s is not set", ENV_BUCKET_NAME)
	}
	if len(cfg.Lambda.Tickers) == 0 {
		return errNoTickers
	}

	path := &store.S3Path{
		Bucket: bucketName,
		Prefix: cfg.Lambda.Prefix,
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	svc, closeFn, err := service.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	settlement := civil.DateOf(time.Now())
	base := service.Request{
		Settlement:   settlement,
		SeriesID:     cfg.BCRA.SeriesID,
		MarketSource: service.MarketAuto,
	}

	reports, err := svc.ComputeAll(ctx, cfg.Lambda.Tickers, base, concurrentTickers)
	if err != nil {
		return err
	}

	failed, err := countFailed(reports, logger)
	if err != nil {
		return err
	}

	s3Client, err := store.NewS3Client(ctx, "")
	if err != nil {
		return err
	}

	outPath, err := store.StoreToS3(ctx, report.NewBatch(reports, settlement), s3Client, path)
	if err != nil {
		return err
	}

	logger.Info("stored reports", zap.String("path", outPath), zap.Int("reports", len(reports)), zap.Int("failed", failed))

	return nil
}

func responseWithFailure(rec events.SQSMessage) events.SQSEventResponse {
	return events.SQSEventResponse{
		BatchItemFailures: []events.SQSBatchItemFailure{
			{
				ItemIdentifier: rec.MessageId,
			},
		},
	}
}

func handler(ctx context.Context, request events.SQSEvent) (events.SQSEventResponse, error) {
	err := computeReports(ctx)

	if err != nil && len(request.Records) > 0 {
		// should just have a single record, ignore the rest
		rec := request.Records[0]
		return responseWithFailure(rec), fmt.Errorf("failed to compute reports: %v", err)
	}

	return events.SQSEventResponse{}, nil
}

func main() {
	lambda.Start(handler)
}
