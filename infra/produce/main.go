package produce

import amqp "github.com/rabbitmq/amqp091-go"

type Produce struct {
	DocumentService *DocumentProduceService
}

func InitProduce(channel *amqp.Channel) *Produce {
	documentService := InitDocumentProduceService(channel)
	if documentService == nil {
		panic("Failed to initialize Document produce service")
	}

	return &Produce{
		DocumentService: documentService,
	}
}
