// Package source loads market volume observations from CSV files and SQL
// warehouses.
package source

import (
	"context"

	"github.com/pkg/errors"

	"github.com/timpalpant/marketgame"
	"github.com/timpalpant/marketgame/config"
)

var ErrUnknownSource = errors.New("unknown source type")

// Source loads aggregated observations.
type Source interface {
	Load(ctx context.Context) ([]marketgame.Observation, error)
	Close() error
}

// Open creates the source configured by cfg.
func Open(ctx context.Context, cfg config.Source) (Source, error) {
	valueColumn := cfg.Query.ValueColumn
	if valueColumn == "" {
		valueColumn = cfg.ValueColumn
	}
	q := Query{
		Table:         cfg.Query.Table,
		AreaColumn:    cfg.Query.AreaColumn,
		MonthColumn:   cfg.Query.MonthColumn,
		CompanyColumn: cfg.Query.CompanyColumn,
		ValueColumn:   valueColumn,
	}

	switch cfg.Type {
	case config.CSVSource:
		if cfg.Path == "" {
			return nil, errors.New("csv source requires an input path")
		}
		return NewCSVSource(cfg.Path, cfg.ValueColumn), nil
	case config.ClickHouseSource:
		ch := cfg.ClickHouse
		return NewClickHouseSource(ctx, ClickHouseConfig{
			Host:         ch.Host,
			Port:         ch.Port,
			Database:     ch.Database,
			User:         ch.User,
			Password:     ch.Password,
			UseHTTP:      ch.UseHTTP,
			DialTimeout:  ch.DialTimeout,
			ReadTimeout:  ch.ReadTimeout,
			MaxOpenConns: ch.MaxOpenConns,
		}, q)
	case config.PostgresSource:
		return NewPostgresSource(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, q)
	}

	return nil, errors.Wrapf(ErrUnknownSource, "%q", cfg.Type)
}
