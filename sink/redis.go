package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/timpalpant/marketgame"
	"github.com/timpalpant/marketgame/config"
)

// Redis stores each area's results under "<prefix>:<run_id>:<area>" and
// points "<prefix>:latest" at the run.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(ctx context.Context, cfg config.RedisSink) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "redis ping")
	}

	return &Redis{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
	}, nil
}

func (s *Redis) Write(ctx context.Context, report *marketgame.Report) error {
	pipe := s.client.TxPipeline()
	for area, result := range report.Areas {
		data, err := json.Marshal(result)
		if err != nil {
			return errors.Wrapf(err, "marshal area %q", area)
		}

		pipe.Set(ctx, areaKey(s.prefix, report.RunID, area), data, s.ttl)
	}
	pipe.Set(ctx, latestKey(s.prefix), report.RunID, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "redis write")
	}

	glog.Infof("Stored %d areas of run %s in Redis", len(report.Areas), report.RunID)
	return nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}

func areaKey(prefix, runID, area string) string {
	return prefix + ":" + runID + ":" + area
}

func latestKey(prefix string) string {
	return prefix + ":latest"
}
