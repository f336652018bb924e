package source

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/timpalpant/marketgame"
)

// PostgresSource aggregates observations in PostgreSQL.
type PostgresSource struct {
	pool  *pgxpool.Pool
	query string
}

func NewPostgresSource(ctx context.Context, dsn string, maxConns int32, q Query) (*PostgresSource, error) {
	query, err := q.build(postgresDialect)
	if err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres dsn")
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres ping")
	}

	return &PostgresSource{pool: pool, query: query}, nil
}

func (s *PostgresSource) Load(ctx context.Context) ([]marketgame.Observation, error) {
	glog.V(1).Infof("Running Postgres query: %s", s.query)
	start := time.Now()
	rows, err := s.pool.Query(ctx, s.query)
	if err != nil {
		return nil, errors.Wrap(err, "postgres query")
	}
	defer rows.Close()

	observations, err := scanObservations(rows)
	if err != nil {
		return nil, err
	}

	glog.Infof("Loaded %d observations from Postgres (took: %v)", len(observations), time.Since(start))
	return observations, nil
}

func (s *PostgresSource) Close() error {
	s.pool.Close()
	return nil
}
