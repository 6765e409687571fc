package workq

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/graphmill/workq-go/contracts"
)

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	name string
}

// WithSubscriberName sets the logical subscriber name used in logs, consumer
// tags and listener errors. Defaults to the queue name.
func WithSubscriberName(name string) SubscribeOption {
	return func(cfg *subscribeConfig) {
		cfg.name = name
	}
}

func newSubscribeConfig(defaultName string, options ...SubscribeOption) *subscribeConfig {
	cfg := &subscribeConfig{name: defaultName}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

// consumerTag derives a broker-visible consumer tag from the logical name.
func (cfg *subscribeConfig) consumerTag() string {
	return fmt.Sprintf("workq-%s-%s", cfg.name, uuid.NewString()[:8])
}

// SubscribeBroadcast binds an anonymous queue to the fanout exchange and
// starts one goroutine delivering every broadcast to handler. Deliveries are
// auto-acknowledged; a handler error loses only that message. The loop runs
// until the channel closes, then reports a *ListenerDiedError through the
// listener error handler.
func (r *Repository) SubscribeBroadcast(handler Handler, options ...SubscribeOption) error {
	cfg := newSubscribeConfig("broadcast", options...)

	if err := r.topology.EnsureExchange(BroadcastExchangeName, amqp.ExchangeFanout); err != nil {
		return &SubscribeError{Op: "declare exchange", Err: err, Timestamp: time.Now()}
	}

	// Server-named, exclusive, auto-delete: the queue exists only for the
	// lifetime of this subscriber's channel.
	queue, err := r.channel.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return &SubscribeError{Op: "declare queue", Err: err, Timestamp: time.Now()}
	}

	if err := r.channel.QueueBind(queue.Name, "", BroadcastExchangeName, false, nil); err != nil {
		return &SubscribeError{Queue: queue.Name, Op: "bind queue", Err: err, Timestamp: time.Now()}
	}

	deliveries, err := r.channel.Consume(queue.Name, cfg.consumerTag(), true, false, false, false, nil)
	if err != nil {
		return &SubscribeError{Queue: queue.Name, Op: "consume", Err: err, Timestamp: time.Now()}
	}

	r.logger.Info("subscribed to broadcast exchange",
		"exchange", BroadcastExchangeName,
		"queue", queue.Name,
		"subscriber", cfg.name)

	go r.runBroadcastLoop(cfg.name, queue.Name, deliveries, handler)
	return nil
}

// SubscribeWorkQueue declares the named durable queue and starts one
// goroutine feeding its deliveries to handler with manual acknowledgement.
// Handler success acks the delivery; any failure nacks it without requeue.
// The loop runs until the channel closes, then reports a *ListenerDiedError
// through the listener error handler.
func (r *Repository) SubscribeWorkQueue(queue string, handler Handler, options ...SubscribeOption) error {
	cfg := newSubscribeConfig(queue, options...)

	// The broadcast exchange is declared ahead of the queue so a work-queue
	// subscriber leaves the full topology in place on a fresh broker.
	if err := r.topology.EnsureExchange(BroadcastExchangeName, amqp.ExchangeFanout); err != nil {
		return &SubscribeError{Queue: queue, Op: "declare exchange", Err: err, Timestamp: time.Now()}
	}

	if err := r.topology.EnsureQueue(queue); err != nil {
		return &SubscribeError{Queue: queue, Op: "declare queue", Err: err, Timestamp: time.Now()}
	}

	deliveries, err := r.channel.Consume(queue, cfg.consumerTag(), false, false, false, false, nil)
	if err != nil {
		return &SubscribeError{Queue: queue, Op: "consume", Err: err, Timestamp: time.Now()}
	}

	r.logger.Info("subscribed to work queue",
		"queue", queue,
		"subscriber", cfg.name)

	go r.runWorkLoop(cfg.name, queue, deliveries, handler)
	return nil
}

// runBroadcastLoop delivers broadcast messages until the stream closes.
func (r *Repository) runBroadcastLoop(name, queue string, deliveries <-chan amqp.Delivery, handler Handler) {
	for delivery := range deliveries {
		doc, err := contracts.ParseDocument(delivery.Body)
		if err != nil {
			derr := &DeliveryError{Queue: queue, Err: err, Timestamp: time.Now()}
			r.logger.Error("discarding malformed broadcast message",
				"subscriber", name,
				"error", derr)
			r.metrics.RecordMessage(queue, 0, false)
			continue
		}

		r.logger.Debug("received broadcast message",
			"exchange", BroadcastExchangeName,
			"subscriber", name)

		start := time.Now()
		err = handler(doc)
		r.metrics.RecordMessage(queue, time.Since(start), err == nil)
		if err != nil {
			derr := &DeliveryError{Queue: queue, Err: err, Timestamp: time.Now()}
			r.logger.Error("broadcast handler failed",
				"subscriber", name,
				"error", derr)
		}
	}

	r.escalate(&ListenerDiedError{
		Subscriber: name,
		Queue:      queue,
		Err:        ErrDeliveryStreamClosed,
		Timestamp:  time.Now(),
	})
}

// runWorkLoop processes work-queue deliveries until the stream closes.
func (r *Repository) runWorkLoop(name, queue string, deliveries <-chan amqp.Delivery, handler Handler) {
	for delivery := range deliveries {
		r.handleWorkDelivery(name, queue, delivery, handler)
	}

	r.escalate(&ListenerDiedError{
		Subscriber: name,
		Queue:      queue,
		Err:        ErrDeliveryStreamClosed,
		Timestamp:  time.Now(),
	})
}

// handleWorkDelivery processes a single delivery and settles its tag exactly
// once: ack on handler success, nack without requeue on any failure.
func (r *Repository) handleWorkDelivery(name, queue string, delivery amqp.Delivery, handler Handler) {
	doc, err := contracts.ParseDocument(delivery.Body)
	if err != nil {
		derr := &DeliveryError{Queue: queue, Err: err, Timestamp: time.Now()}
		r.logger.Error("rejecting malformed work message",
			"subscriber", name,
			"deliveryTag", delivery.DeliveryTag,
			"error", derr)
		r.metrics.RecordMessage(queue, 0, false)
		r.nack(queue, delivery)
		return
	}

	r.logger.Debug("received work message",
		"queue", queue,
		"subscriber", name,
		"deliveryTag", delivery.DeliveryTag)

	start := time.Now()
	err = handler(doc)
	elapsed := time.Since(start)
	r.metrics.RecordMessage(queue, elapsed, err == nil)

	if err != nil {
		derr := &DeliveryError{Queue: queue, Err: err, Timestamp: time.Now()}
		r.logger.Error("work handler failed",
			"subscriber", name,
			"deliveryTag", delivery.DeliveryTag,
			"workTime", elapsed,
			"error", derr)
		r.nack(queue, delivery)
		return
	}

	r.logger.Debug("acknowledging work message",
		"queue", queue,
		"deliveryTag", delivery.DeliveryTag,
		"workTime", elapsed)

	if ackErr := delivery.Ack(false); ackErr != nil {
		r.logger.Error("failed to ack message",
			"queue", queue,
			"deliveryTag", delivery.DeliveryTag,
			"error", ackErr)
	}
}

// nack negatively acknowledges a single delivery without requeueing it to
// this consumer; redelivery policy is the broker's. A failed nack is logged
// and the loop carries on.
func (r *Repository) nack(queue string, delivery amqp.Delivery) {
	if err := delivery.Nack(false, false); err != nil {
		r.logger.Error("failed to nack message",
			"queue", queue,
			"deliveryTag", delivery.DeliveryTag,
			"error", err)
	}
}

// escalate reports a dead subscriber loop. Loud by contract: the error goes
// to metrics and the configured listener error handler, never only to a log.
func (r *Repository) escalate(err *ListenerDiedError) {
	r.metrics.RecordListenerDeath(err.Subscriber)
	r.onListenerError(err)
}
