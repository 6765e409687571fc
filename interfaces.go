package workq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/graphmill/workq-go/contracts"
)

// Channel is the subset of the AMQP channel capability the repository
// consumes. *amqp.Channel satisfies it; tests substitute fakes.
type Channel interface {
	// ExchangeDeclare declares an exchange of the given kind.
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error

	// QueueDeclare declares a queue. An empty name asks the broker to
	// generate one; the declared name is returned in the amqp.Queue.
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)

	// QueueBind binds a queue to an exchange.
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error

	// QueueDelete deletes a queue and returns the number of purged messages.
	QueueDelete(name string, ifUnused, ifEmpty, noWait bool) (int, error)

	// PublishWithContext publishes a message body to an exchange.
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error

	// Consume registers a consumer and returns its delivery stream. The
	// stream closes when the channel or connection closes.
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)

	// Close closes the channel.
	Close() error
}

// Handler processes one received message. A non-nil error marks the message
// as failed: work-queue deliveries are nacked without requeue, broadcast
// deliveries are logged and dropped.
type Handler func(doc contracts.Document) error
