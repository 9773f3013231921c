package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alimikegami/point-of-sales/catalog-service/internal/dto"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/errs"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const maxRetries = 3

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher wraps every event in the KafkaMessage envelope and retries
// failed writes with a linearly growing delay.
type Publisher struct {
	writer  MessageWriter
	backoff time.Duration
}

func CreatePublisher(writer MessageWriter) *Publisher {
	return &Publisher{writer: writer, backoff: time.Second}
}

func (p *Publisher) Publish(ctx context.Context, eventType string, key string, data interface{}) (err error) {
	jsonMsg, err := json.Marshal(dto.KafkaMessage{EventType: eventType, Data: data})
	if err != nil {
		return err
	}

	msg := kafka.Message{Value: jsonMsg}
	if key != "" {
		msg.Key = []byte(key)
	}

	for i := 0; i < maxRetries; i++ {
		err = p.writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}
		log.Ctx(ctx).Error().Err(err).Str("component", "Publish").Str("event_type", eventType).Int("attempt", i+1).Msg("")

		if i == maxRetries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return errs.Infrastructure("Publish", ctx.Err())
		case <-time.After(p.backoff * time.Duration(i+1)):
		}
	}

	return errs.Infrastructure("Publish", err)
}
