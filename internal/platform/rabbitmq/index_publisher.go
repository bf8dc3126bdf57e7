package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// IndexEvent asks the indexing worker to (re)build a document's chunks.
type IndexEvent struct {
	DocumentID uint `json:"document_id"`
}

// IndexPublisher enqueues index events on a durable queue. Indexing runs
// asynchronously relative to the lifecycle transition that triggered it.
type IndexPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewIndexPublisher(conn *amqp.Connection, queueName string) *IndexPublisher {
	return &IndexPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *IndexPublisher) PublishIndex(ctx context.Context, documentID uint) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(IndexEvent{DocumentID: documentID})
	if err != nil {
		return fmt.Errorf("marshal index event failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish index event failed: %w", err)
	}
	return nil
}
