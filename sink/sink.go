// Package sink publishes analysis reports to files, Redis and Kafka.
package sink

import (
	"context"

	"github.com/pkg/errors"

	"github.com/timpalpant/marketgame"
	"github.com/timpalpant/marketgame/config"
)

// Sink receives finished reports.
type Sink interface {
	Write(ctx context.Context, report *marketgame.Report) error
	Close() error
}

// Multi writes to every sink in order, stopping at the first error.
type Multi []Sink

func (m Multi) Write(ctx context.Context, report *marketgame.Report) error {
	for _, s := range m {
		if err := s.Write(ctx, report); err != nil {
			return err
		}
	}

	return nil
}

// Close closes every sink and returns the first error.
func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}

// Open creates every sink enabled in cfg.
func Open(ctx context.Context, cfg config.Sinks) (Multi, error) {
	var sinks Multi
	if cfg.JSON.Path != "" {
		sinks = append(sinks, NewJSONFile(cfg.JSON.Path))
	}

	if cfg.NPZ.Path != "" {
		sinks = append(sinks, NewNPZ(cfg.NPZ.Path))
	}

	if cfg.Redis.Enabled {
		r, err := NewRedis(ctx, cfg.Redis)
		if err != nil {
			sinks.Close()
			return nil, errors.Wrap(err, "open redis sink")
		}
		sinks = append(sinks, r)
	}

	if cfg.Kafka.Enabled {
		k, err := NewKafka(cfg.Kafka)
		if err != nil {
			sinks.Close()
			return nil, errors.Wrap(err, "open kafka sink")
		}
		sinks = append(sinks, k)
	}

	return sinks, nil
}
