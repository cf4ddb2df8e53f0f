package collect

import (
	"context"
	"fmt"
	"time"

	"benritz/duals/internal/types"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

var SourcePostgres = "postgres"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS reference_rates (
	series_id   INTEGER          NOT NULL,
	obs_date    DATE             NOT NULL,
	rate        DOUBLE PRECISION NOT NULL,
	source      TEXT             NOT NULL,
	updated_at  TIMESTAMPTZ      NOT NULL DEFAULT now(),
	PRIMARY KEY (series_id, obs_date)
)`

const upsertSQL = `
INSERT INTO reference_rates (series_id, obs_date, rate, source, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (series_id, obs_date)
DO UPDATE SET rate = EXCLUDED.rate, source = EXCLUDED.source, updated_at = now()`

const seriesSQL = `
SELECT obs_date, rate
FROM reference_rates
WHERE series_id = $1 AND obs_date BETWEEN $2 AND $3
ORDER BY obs_date`

// Postgres stores reference-rate observations and serves them back as a RateSource.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ RateSource = &Postgres{}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *Postgres {
	return &Postgres{pool: pool, logger: logger}
}

// ConnectPostgres opens a pool for dsn and makes sure the table exists.
func ConnectPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	p := NewPostgres(pool, logger)
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return p, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("creating reference_rates: %w", err)
	}
	return nil
}

// Upsert writes observations in a single batch, replacing existing values
// for the same series and date.
func (p *Postgres) Upsert(ctx context.Context, seriesID int, source string, obs []types.RateObservation) error {
	if len(obs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, o := range obs {
		batch.Queue(upsertSQL, seriesID, o.Date.In(time.UTC), o.Rate, source)
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range obs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upserting observation %s: %w", obs[i].Date, err)
		}
	}

	p.logger.Info("upserted observations", zap.Int("seriesID", seriesID), zap.Int("count", len(obs)))

	return nil
}

func (p *Postgres) Series(ctx context.Context, seriesID int, from, to civil.Date) ([]types.RateObservation, error) {
	rows, err := p.pool.Query(ctx, seriesSQL, seriesID, from.In(time.UTC), to.In(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDataUnavailable, err)
	}
	defer rows.Close()

	obs := []types.RateObservation{}
	for rows.Next() {
		var (
			date time.Time
			rate float64
		)
		if err := rows.Scan(&date, &rate); err != nil {
			return nil, err
		}
		obs = append(obs, types.RateObservation{Date: civil.DateOf(date), Rate: rate})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return obs, nil
}
