package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Publisher publishes a payload on a channel. *cache.Cache satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
}

// RedisSink publishes notifications as JSON on a pub/sub channel.
type RedisSink struct {
	pub     Publisher
	channel string
}

func NewRedisSink(pub Publisher, channel string) *RedisSink {
	return &RedisSink{pub: pub, channel: channel}
}

func (s *RedisSink) Notify(ctx context.Context, n Notification) error {
	if s == nil || s.pub == nil {
		return fmt.Errorf("notification publisher is nil")
	}
	if err := n.validate(); err != nil {
		return err
	}
	n.stamp()

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	receivers, err := s.pub.Publish(ctx, s.channel, data)
	if err != nil {
		return err
	}

	slog.Debug("notification published",
		"channel", s.channel,
		"unit_id", n.UnitID,
		"entity_id", n.EntityID(),
		"receivers", receivers,
	)
	return nil
}
