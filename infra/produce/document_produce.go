package produce

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-document-gateway/entity"
)

const (
	DocumentExchange = "document.exchange"

	MetadataRepairQueue      = "document.metadata.repair"
	MetadataRepairRoutingKey = "document.metadata.repair"

	InconsistencyQueue      = "document.inconsistent"
	InconsistencyRoutingKey = string(entity.EventDocumentInconsistent)
)

// Publisher is the publishing side of an AMQP channel.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// DocumentProduceService publishes document events and metadata repair jobs.
type DocumentProduceService struct {
	mu        sync.Mutex
	publisher Publisher
}

func InitDocumentProduceService(channel *amqp.Channel) *DocumentProduceService {
	if err := DeclareTopology(channel); err != nil {
		panic("Failed to declare Document topology: " + err.Error())
	}
	return NewDocumentProduceService(channel)
}

func NewDocumentProduceService(publisher Publisher) *DocumentProduceService {
	return &DocumentProduceService{publisher: publisher}
}

// DeclareTopology declares the document exchange and binds its queues. It is
// shared by the producer and the consumers.
func DeclareTopology(channel *amqp.Channel) error {
	err := channel.ExchangeDeclare(
		DocumentExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	bindings := []struct {
		queue string
		key   string
	}{
		{MetadataRepairQueue, MetadataRepairRoutingKey},
		{InconsistencyQueue, InconsistencyRoutingKey},
	}
	for _, b := range bindings {
		_, err := channel.QueueDeclare(
			b.queue,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return err
		}

		if err := channel.QueueBind(b.queue, b.key, DocumentExchange, false, nil); err != nil {
			return err
		}
	}
	return nil
}

// PublishDocumentEvent routes event by its type, e.g. "document.uploaded".
func (s *DocumentProduceService) PublishDocumentEvent(ctx context.Context, event entity.DocumentEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	return s.publish(ctx, string(event.Type), event)
}

func (s *DocumentProduceService) PublishMetadataRepair(ctx context.Context, job entity.MetadataRepairJob) error {
	if job.Timestamp == 0 {
		job.Timestamp = time.Now().Unix()
	}
	return s.publish(ctx, MetadataRepairRoutingKey, job)
}

func (s *DocumentProduceService) publish(ctx context.Context, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.publisher.PublishWithContext(
		ctx,
		DocumentExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}
