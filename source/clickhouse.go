package source

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/timpalpant/marketgame"
)

type ClickHouseConfig struct {
	Host         string
	Port         int
	Database     string
	User         string
	Password     string
	UseHTTP      bool
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	MaxOpenConns int
}

// ClickHouseSource aggregates observations in ClickHouse.
type ClickHouseSource struct {
	db    *sql.DB
	query string
}

func NewClickHouseSource(ctx context.Context, cfg ClickHouseConfig, q Query) (*ClickHouseSource, error) {
	if cfg.Host == "" {
		return nil, errors.New("clickhouse host is required")
	}

	query, err := q.build(clickhouseDialect)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("clickhouse", buildDSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "clickhouse open")
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "clickhouse ping")
	}

	return &ClickHouseSource{db: db, query: query}, nil
}

func (s *ClickHouseSource) Load(ctx context.Context) ([]marketgame.Observation, error) {
	glog.V(1).Infof("Running ClickHouse query: %s", s.query)
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, errors.Wrap(err, "clickhouse query")
	}
	defer rows.Close()

	observations, err := scanObservations(rows)
	if err != nil {
		return nil, err
	}

	glog.Infof("Loaded %d observations from ClickHouse (took: %v)", len(observations), time.Since(start))
	return observations, nil
}

func (s *ClickHouseSource) Close() error {
	return s.db.Close()
}

func buildDSN(cfg ClickHouseConfig) string {
	scheme := "clickhouse"
	if cfg.UseHTTP {
		scheme = "http"
	}

	params := url.Values{}
	if cfg.DialTimeout > 0 {
		params.Set("dial_timeout", cfg.DialTimeout.String())
	}
	if cfg.ReadTimeout > 0 {
		params.Set("read_timeout", cfg.ReadTimeout.String())
	}

	dsn := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Database,
		RawQuery: params.Encode(),
	}

	return dsn.String()
}
