package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-document-gateway/entity"
	"github.com/tnqbao/gau-document-gateway/infra"
	"github.com/tnqbao/gau-document-gateway/infra/produce"
	"github.com/tnqbao/gau-document-gateway/repository"
)

// RepairConsumer drains metadata repair jobs published after failed metadata
// writes.
type RepairConsumer struct {
	channel    *amqp.Channel
	logger     *infra.LoggerClient
	reconciler *Reconciler

	maxRetries int
	backoff    time.Duration
}

func NewRepairConsumer(channel *amqp.Channel, infra *infra.Infra, repo *repository.Repository) *RepairConsumer {
	return &RepairConsumer{
		channel:    channel,
		logger:     infra.Logger,
		reconciler: NewReconciler(infra.Blob, repo.DocumentRepo, infra.Logger),
		maxRetries: 3,
		backoff:    2 * time.Second,
	}
}

func (c *RepairConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		produce.MetadataRepairQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register metadata repair consumer: %w", err)
	}

	c.logger.InfoWithContextf(ctx, "[Repair Consumer] Started listening for repair jobs on queue: %s", produce.MetadataRepairQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.InfoWithContextf(ctx, "[Repair Consumer] Shutting down...")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.WarningWithContextf(ctx, "[Repair Consumer] Channel closed")
					return
				}
				c.handleRepair(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *RepairConsumer) handleRepair(ctx context.Context, msg amqp.Delivery) {
	c.logger.InfoWithContextf(ctx, "[Repair Consumer] Received message: %s", string(msg.Body))

	var job entity.MetadataRepairJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Repair Consumer] Failed to unmarshal message: %v", err)
		_ = msg.Nack(false, false)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		lastErr = c.reconciler.Handle(ctx, job)
		if lastErr == nil {
			_ = msg.Ack(false)
			return
		}

		c.logger.ErrorWithContextf(ctx, lastErr, "[Repair Consumer] Attempt %d/%d for %s failed: %v", attempt, c.maxRetries, job.Path, lastErr)

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				_ = msg.Nack(false, true)
				return
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}
	}

	c.logger.ErrorWithContextf(ctx, lastErr, "[Repair Consumer] Failed after %d attempts, requeueing message", c.maxRetries)
	_ = msg.Nack(false, true)
}
