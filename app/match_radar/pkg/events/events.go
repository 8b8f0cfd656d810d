package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/config"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/logger"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
)

// AnalysisEvent 一次分析落库后发布的事件
type AnalysisEvent struct {
	AnalysisID  int64     `json:"analysis_id"`
	Match       string    `json:"match"`
	League      string    `json:"league"`
	Date        string    `json:"date"`
	Outcome     string    `json:"outcome"`
	FailedStage string    `json:"failed_stage,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	key string
}

// NewAnalysisEvent 以比赛键作为消息键，保证同一场比赛的事件落在同一分区
func NewAnalysisEvent(q model.MatchQuery, id int64, outcome, failedStage string) AnalysisEvent {
	return AnalysisEvent{
		AnalysisID:  id,
		Match:       q.Title(),
		League:      q.League,
		Date:        q.DateString(),
		Outcome:     outcome,
		FailedStage: failedStage,
		CreatedAt:   time.Now().UTC(),
		key:         q.Key(),
	}
}

// Publisher 事件发布
type Publisher interface {
	Publish(ctx context.Context, ev AnalysisEvent) error
	Close() error
}

// Nop 未配置 broker 时使用
type Nop struct{}

func (Nop) Publish(context.Context, AnalysisEvent) error { return nil }
func (Nop) Close() error                                 { return nil }

// Kafka 同步写入单个 topic
type Kafka struct {
	w   *kafka.Writer
	log *logrus.Entry
}

// New 根据配置返回发布器，未配置 broker 时返回 Nop
func New(cfg config.KafkaConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		return Nop{}
	}
	return &Kafka{
		w: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
		},
		log: logger.Component("events"),
	}
}

func message(ev AnalysisEvent) (kafka.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.key),
		Value: data,
		Time:  ev.CreatedAt,
	}, nil
}

// Publish 实现 Publisher
func (k *Kafka) Publish(ctx context.Context, ev AnalysisEvent) error {
	msg, err := message(ev)
	if err != nil {
		return err
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", k.w.Topic, err)
	}
	k.log.Debugf("已发布分析事件: %s (%s)", ev.Match, ev.Outcome)
	return nil
}

// Close 刷新并关闭 writer
func (k *Kafka) Close() error {
	return k.w.Close()
}
