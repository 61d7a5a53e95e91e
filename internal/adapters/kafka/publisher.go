// Package kafkaad publishes generated recommendations for downstream consumers
// (channel managers, the review dashboard).
package kafkaad

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"hotel_pricing/internal/domain"
)

type Publisher struct {
	w *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 250 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}}
}

// Publish writes one message per record keyed by hotel and room type, so all
// days of a room land on the same partition in order.
func (p *Publisher) Publish(ctx context.Context, recs []domain.PriceRecommendation) error {
	if len(recs) == 0 {
		return nil
	}
	msgs, err := Messages(recs, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d recommendations: %w", len(msgs), err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }

func Messages(recs []domain.PriceRecommendation, at time.Time) ([]kafka.Message, error) {
	out := make([]kafka.Message, 0, len(recs))
	for _, r := range recs {
		body, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal recommendation %s: %w", r.ID, err)
		}
		out = append(out, kafka.Message{
			Key:   []byte(r.HotelID + "/" + r.RoomTypeID),
			Value: body,
			Time:  at,
			Headers: []kafka.Header{
				{Key: "status", Value: []byte(r.Status)},
			},
		})
	}
	return out, nil
}
