package sink

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/timpalpant/marketgame"
	"github.com/timpalpant/marketgame/config"
)

// TransitionMessage is the value of each Kafka message.
type TransitionMessage struct {
	RunID      string                      `json:"run_id"`
	Area       string                      `json:"area"`
	Transition marketgame.TransitionResult `json:"transition"`
}

// Kafka streams one message per transition, keyed by area so that an
// area's transitions stay ordered within a partition.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(cfg config.KafkaSink) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}

	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchSize:    cfg.BatchSize,
			WriteTimeout: cfg.WriteTimeout,
		},
	}, nil
}

func (s *Kafka) Write(ctx context.Context, report *marketgame.Report) error {
	msgs, err := transitionMessages(report)
	if err != nil {
		return err
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrap(err, "kafka write")
	}

	glog.Infof("Published %d transitions of run %s to %s", len(msgs), report.RunID, s.writer.Topic)
	return nil
}

func (s *Kafka) Close() error {
	return s.writer.Close()
}

func transitionMessages(report *marketgame.Report) ([]kafka.Message, error) {
	areas := make([]string, 0, len(report.Areas))
	for area := range report.Areas {
		areas = append(areas, area)
	}
	sort.Strings(areas)

	msgs := make([]kafka.Message, 0, report.NumTransitions())
	for _, area := range areas {
		for _, t := range report.Areas[area].PerMonth {
			value, err := json.Marshal(TransitionMessage{
				RunID:      report.RunID,
				Area:       area,
				Transition: t,
			})
			if err != nil {
				return nil, errors.Wrapf(err, "marshal %s/%s", area, t.Month)
			}

			msgs = append(msgs, kafka.Message{
				Key:   []byte(area),
				Value: value,
			})
		}
	}

	return msgs, nil
}
