package worker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-document-gateway/entity"
	"github.com/tnqbao/gau-document-gateway/infra"
	"github.com/tnqbao/gau-document-gateway/infra/produce"
	"github.com/tnqbao/gau-document-gateway/service"
)

// InconsistencyConsumer records documents whose metadata outlived their blob.
// Nothing is deleted; an operator decides how to repair them.
type InconsistencyConsumer struct {
	channel *amqp.Channel
	logger  *infra.LoggerClient
}

func NewInconsistencyConsumer(channel *amqp.Channel, infra *infra.Infra) *InconsistencyConsumer {
	return &InconsistencyConsumer{
		channel: channel,
		logger:  infra.Logger,
	}
}

func (c *InconsistencyConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		produce.InconsistencyQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register inconsistency consumer: %w", err)
	}

	c.logger.InfoWithContextf(ctx, "[Inconsistency Consumer] Started listening on queue: %s", produce.InconsistencyQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.InfoWithContextf(ctx, "[Inconsistency Consumer] Shutting down...")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.WarningWithContextf(ctx, "[Inconsistency Consumer] Channel closed")
					return
				}
				c.handleInconsistency(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *InconsistencyConsumer) handleInconsistency(ctx context.Context, msg amqp.Delivery) {
	var event entity.DocumentEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Inconsistency Consumer] Failed to unmarshal message: %v", err)
		_ = msg.Nack(false, false)
		return
	}

	c.logger.ErrorWithContextf(ctx, service.ErrStoreInconsistency,
		"[Inconsistency Consumer] Document %s (id=%s owner=%s) has metadata but no blob, reported by %s: %s",
		event.Path, event.DocumentID, event.OwnerID, event.ActorID, event.Detail)
	_ = msg.Ack(false)
}
