// Copyright 2025 Workq Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workq

import (
	"context"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/graphmill/workq-go/contracts"
	"github.com/graphmill/workq-go/internal/rabbitmq"
)

const (
	// BroadcastExchangeName is the fixed fanout exchange every broadcast
	// message flows through.
	BroadcastExchangeName = "exBroadcast"

	// GraphPropertyQueueName is the reserved durable queue carrying graph
	// property work items. DeleteQueue operates on this queue only.
	GraphPropertyQueueName = "graphProperty"
)

// Repository is the single entry point for publishing to and consuming from
// the broker. It owns the connection, the shared channel, and the topology
// cache; subscriber loops share the channel but never close it.
type Repository struct {
	conn            *rabbitmq.ConnectionManager
	channel         Channel
	topology        *topologyCache
	logger          *slog.Logger
	metrics         MetricsCollector
	onListenerError func(error)
}

// Option configures the Repository.
type Option func(*Repository)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics MetricsCollector) Option {
	return func(r *Repository) {
		r.metrics = metrics
	}
}

// WithListenerErrorHandler sets the sink that receives the ListenerDiedError
// when a subscriber loop terminates. The default handler logs at Error level.
// The handler runs on the dying loop's goroutine.
func WithListenerErrorHandler(handler func(error)) Option {
	return func(r *Repository) {
		r.onListenerError = handler
	}
}

func newRepository(options ...Option) *Repository {
	r := &Repository{
		logger:  slog.Default(),
		metrics: &NoOpMetricsCollector{},
	}

	for _, opt := range options {
		opt(r)
	}

	if r.onListenerError == nil {
		r.onListenerError = func(err error) {
			r.logger.Error("subscriber loop terminated", "error", err)
		}
	}

	return r
}

// New connects to the broker at url and opens the shared channel. It returns
// a *rabbitmq.ConnectionError if the connection cannot be established.
func New(ctx context.Context, url string, options ...Option) (*Repository, error) {
	r := newRepository(options...)

	conn := rabbitmq.NewConnectionManager(url, rabbitmq.WithLogger(r.logger))
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			r.logger.Error("failed to close connection", "error", closeErr)
		}
		return nil, err
	}

	r.conn = conn
	r.channel = channel
	r.topology = newTopologyCache(channel)
	return r, nil
}

// NewWithChannel builds a repository on a caller-supplied channel. The caller
// keeps ownership of the underlying connection; Shutdown closes only the
// channel.
func NewWithChannel(channel Channel, options ...Option) *Repository {
	r := newRepository(options...)
	r.channel = channel
	r.topology = newTopologyCache(channel)
	return r
}

// Broadcast publishes the document to the fanout exchange, declaring it on
// first use. Every bound listener receives a copy; nobody acknowledges.
func (r *Repository) Broadcast(ctx context.Context, doc contracts.Document) error {
	start := time.Now()

	if err := r.topology.EnsureExchange(BroadcastExchangeName, amqp.ExchangeFanout); err != nil {
		r.metrics.RecordPublish(BroadcastExchangeName, "", time.Since(start), false)
		return &PublishError{Exchange: BroadcastExchangeName, Err: err, Timestamp: time.Now()}
	}

	body, err := doc.Marshal()
	if err != nil {
		r.metrics.RecordPublish(BroadcastExchangeName, "", time.Since(start), false)
		return &PublishError{Exchange: BroadcastExchangeName, Err: err, Timestamp: time.Now()}
	}

	r.logger.Debug("publishing message to broadcast exchange",
		"exchange", BroadcastExchangeName,
		"bytes", len(body))

	err = r.channel.PublishWithContext(ctx, BroadcastExchangeName, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	r.metrics.RecordPublish(BroadcastExchangeName, "", time.Since(start), err == nil)
	if err != nil {
		return &PublishError{Exchange: BroadcastExchangeName, Err: err, Timestamp: time.Now()}
	}
	return nil
}

// Push publishes the document directly to the named queue, declaring it
// durable on first use. The message is routed through the default exchange
// with the queue name as routing key.
func (r *Repository) Push(ctx context.Context, queue string, doc contracts.Document) error {
	start := time.Now()

	if err := r.topology.EnsureQueue(queue); err != nil {
		r.metrics.RecordPublish("", queue, time.Since(start), false)
		return &PublishError{RoutingKey: queue, Err: err, Timestamp: time.Now()}
	}

	body, err := doc.Marshal()
	if err != nil {
		r.metrics.RecordPublish("", queue, time.Since(start), false)
		return &PublishError{RoutingKey: queue, Err: err, Timestamp: time.Now()}
	}

	r.logger.Debug("enqueueing message",
		"queue", queue,
		"bytes", len(body))

	err = r.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	r.metrics.RecordPublish("", queue, time.Since(start), err == nil)
	if err != nil {
		return &PublishError{RoutingKey: queue, Err: err, Timestamp: time.Now()}
	}
	return nil
}

// DeleteQueue deletes the reserved graph property queue from the broker.
func (r *Repository) DeleteQueue() error {
	r.logger.Info("deleting queue", "queue", GraphPropertyQueueName)

	if _, err := r.channel.QueueDelete(GraphPropertyQueueName, false, false, false); err != nil {
		return &AdminError{
			Queue:     GraphPropertyQueueName,
			Op:        "delete queue",
			Err:       err,
			Timestamp: time.Now(),
		}
	}
	return nil
}

// Flush is a no-op: publishes are synchronous at this layer and nothing is
// buffered locally.
func (r *Repository) Flush() {}

// Shutdown closes the channel and then the connection. Teardown is
// best-effort: close failures are logged, never returned. Any running
// subscriber loop terminates through its fatal-error path once the channel
// is gone.
func (r *Repository) Shutdown() {
	r.logger.Debug("closing channel")
	if err := r.channel.Close(); err != nil {
		r.logger.Error("failed to close channel", "error", err)
	}

	if r.conn != nil {
		r.logger.Debug("closing connection")
		if err := r.conn.Close(); err != nil {
			r.logger.Error("failed to close connection", "error", err)
		}
	}
}
