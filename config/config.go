// Package config loads the YAML configuration of the marketgame tools.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/timpalpant/marketgame"
)

// Source types.
const (
	CSVSource        = "csv"
	ClickHouseSource = "clickhouse"
	PostgresSource   = "postgres"
)

type Config struct {
	Analysis Analysis `yaml:"analysis"`
	Source   Source   `yaml:"source"`
	Sinks    Sinks    `yaml:"sinks"`
	Metrics  Metrics  `yaml:"metrics"`
	Server   Server   `yaml:"server"`
}

type Analysis struct {
	Influence float64 `yaml:"influence" default:"0.25" validate:"gte=0,lte=1"`
	Cap       float64 `yaml:"cap" default:"50" validate:"gt=0"`
	Steps     int     `yaml:"steps" default:"200" validate:"gte=0"`
	TimeStep  float64 `yaml:"dt" default:"0.01" validate:"gt=0"`
	// Zero means one worker per CPU.
	Workers   int `yaml:"workers" validate:"gte=0"`
	CacheSize int `yaml:"equilibrium_cache_size" default:"1024" validate:"gte=0"`
}

// Params converts the section to analyzer parameters.
func (a Analysis) Params() marketgame.Params {
	params := marketgame.DefaultParams()
	params.Payoff = marketgame.PayoffParams{
		Influence: a.Influence,
		Cap:       a.Cap,
	}
	params.Steps = a.Steps
	params.TimeStep = a.TimeStep
	if a.Workers > 0 {
		params.Workers = a.Workers
	}
	params.CacheSize = a.CacheSize
	return params
}

type Source struct {
	Type string `yaml:"type" default:"csv" validate:"oneof=csv clickhouse postgres"`
	// CSV input file, optionally gzipped.
	Path        string `yaml:"path"`
	ValueColumn string `yaml:"value_column" default:"ms" validate:"required"`

	ClickHouse ClickHouse `yaml:"clickhouse"`
	Postgres   Postgres   `yaml:"postgres"`
	Query      Query      `yaml:"query"`
}

type ClickHouse struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port" default:"9000" validate:"gte=0,lte=65535"`
	Database     string        `yaml:"database" default:"default"`
	User         string        `yaml:"user" default:"default"`
	Password     string        `yaml:"password"`
	UseHTTP      bool          `yaml:"use_http"`
	DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
	MaxOpenConns int           `yaml:"max_open_conns" default:"4" validate:"gte=1"`
}

type Postgres struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns" default:"4" validate:"gte=1"`
}

// Query names the table and columns holding one row per volume record.
type Query struct {
	Table         string `yaml:"table" default:"volumes"`
	AreaColumn    string `yaml:"area_column" default:"trading_area"`
	MonthColumn   string `yaml:"month_column" default:"month"`
	CompanyColumn string `yaml:"company_column" default:"company"`
	// Empty means Source.ValueColumn.
	ValueColumn string `yaml:"value_column"`
}

type Sinks struct {
	JSON  JSONSink  `yaml:"json"`
	NPZ   NPZSink   `yaml:"npz"`
	Redis RedisSink `yaml:"redis"`
	Kafka KafkaSink `yaml:"kafka"`
}

type JSONSink struct {
	// A ".gz" suffix compresses the report.
	Path string `yaml:"path"`
}

type NPZSink struct {
	Path string `yaml:"path"`
}

type RedisSink struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr" default:"localhost:6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0"`
	Prefix   string        `yaml:"prefix" default:"marketgame"`
	TTL      time.Duration `yaml:"ttl" default:"168h"`
}

type KafkaSink struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"marketgame.transitions"`
	BatchSize    int           `yaml:"batch_size" default:"100" validate:"gte=1"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
}

type Metrics struct {
	// Written after batch runs when set.
	Textfile string `yaml:"textfile"`
}

type Server struct {
	Addr            string        `yaml:"addr" default:":8080" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	// Largest accepted request body, in the echo BodyLimit format.
	BodyLimit string `yaml:"body_limit" default:"16M"`
}

var validate = validator.New()

// Default returns the configuration with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(err)
	}

	return &c
}

// Load reads and parses a YAML configuration file. Fields absent from the
// file keep their defaults. The result is not validated, so command-line
// overrides can be applied first.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	return c, nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MARKETGAME_CLICKHOUSE_PASSWORD"); v != "" {
		c.Source.ClickHouse.Password = v
	}
	if v := os.Getenv("MARKETGAME_POSTGRES_DSN"); v != "" {
		c.Source.Postgres.DSN = v
	}
	if v := os.Getenv("MARKETGAME_REDIS_PASSWORD"); v != "" {
		c.Sinks.Redis.Password = v
	}
	if v := os.Getenv("MARKETGAME_KAFKA_BROKERS"); v != "" {
		c.Sinks.Kafka.Brokers = strings.Split(v, ",")
	}
}

// Validate checks field constraints and the settings each enabled
// component requires.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "validate config")
	}

	switch c.Source.Type {
	case ClickHouseSource:
		if c.Source.ClickHouse.Host == "" {
			return errors.New("source.clickhouse.host is required")
		}
	case PostgresSource:
		if c.Source.Postgres.DSN == "" {
			return errors.New("source.postgres.dsn is required")
		}
	}

	if c.Sinks.Kafka.Enabled && len(c.Sinks.Kafka.Brokers) == 0 {
		return errors.New("sinks.kafka.brokers is required")
	}
	if c.Sinks.Redis.Enabled && c.Sinks.Redis.Addr == "" {
		return errors.New("sinks.redis.addr is required")
	}

	return errors.Wrap(c.Analysis.Params().Validate(), "validate config")
}
