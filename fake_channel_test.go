package workq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// recordingAcknowledger counts ack/nack/reject calls attached to synthesized
// deliveries.
type recordingAcknowledger struct {
	mu      sync.Mutex
	acks    int
	nacks   int
	rejects int
	requeue []bool
	ackErr  error
	nackErr error
}

func (a *recordingAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return a.ackErr
}

func (a *recordingAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	a.requeue = append(a.requeue, requeue)
	return a.nackErr
}

func (a *recordingAcknowledger) Reject(tag uint64, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejects++
	return nil
}

func (a *recordingAcknowledger) counts() (acks, nacks int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acks, a.nacks
}

func (a *recordingAcknowledger) requeueFlags() []bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]bool(nil), a.requeue...)
}

type fakePublish struct {
	Exchange string
	Key      string
	Msg      amqp.Publishing
}

// fakeChannel implements Channel with an in-memory broker: published
// messages are routed to bound queues, buffered until a consumer appears,
// and distributed round-robin across competing consumers.
type fakeChannel struct {
	mu sync.Mutex

	ack amqp.Acknowledger

	exchangeDeclares map[string]int
	exchangeKinds    map[string]string
	queueDeclares    map[string]int
	queueDurable     map[string]bool
	bindings         map[string]string // queue -> exchange
	published        []fakePublish
	deleted          []string

	buffered  map[string][]amqp.Delivery
	consumers map[string][]chan amqp.Delivery
	rr        map[string]int
	genCount  int
	nextTag   uint64
	closed    bool

	exchangeDeclareErr error
	queueDeclareErr    error
	bindErr            error
	publishErr         error
	consumeErr         error
	deleteErr          error
	closeErr           error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		ack:              &recordingAcknowledger{},
		exchangeDeclares: make(map[string]int),
		exchangeKinds:    make(map[string]string),
		queueDeclares:    make(map[string]int),
		queueDurable:     make(map[string]bool),
		bindings:         make(map[string]string),
		buffered:         make(map[string][]amqp.Delivery),
		consumers:        make(map[string][]chan amqp.Delivery),
		rr:               make(map[string]int),
	}
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exchangeDeclareErr != nil {
		return f.exchangeDeclareErr
	}
	f.exchangeDeclares[name]++
	f.exchangeKinds[name] = kind
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queueDeclareErr != nil {
		return amqp.Queue{}, f.queueDeclareErr
	}
	if name == "" {
		f.genCount++
		name = fmt.Sprintf("amq.gen-%d", f.genCount)
	}
	f.queueDeclares[name]++
	f.queueDurable[name] = durable
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bindErr != nil {
		return f.bindErr
	}
	f.bindings[name] = exchange
	return nil
}

func (f *fakeChannel) QueueDelete(name string, ifUnused, ifEmpty, noWait bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.deleted = append(f.deleted, name)
	return 0, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, fakePublish{Exchange: exchange, Key: key, Msg: msg})

	if exchange == "" {
		f.routeLocked(key, msg.Body)
		return nil
	}
	for queue, boundExchange := range f.bindings {
		if boundExchange == exchange {
			f.routeLocked(queue, msg.Body)
		}
	}
	return nil
}

// routeLocked delivers to one consumer of the queue (round-robin) or buffers
// the delivery until a consumer registers. Callers hold f.mu.
func (f *fakeChannel) routeLocked(queue string, body []byte) {
	f.nextTag++
	delivery := amqp.Delivery{
		Acknowledger: f.ack,
		DeliveryTag:  f.nextTag,
		Body:         append([]byte(nil), body...),
	}

	streams := f.consumers[queue]
	if len(streams) == 0 {
		f.buffered[queue] = append(f.buffered[queue], delivery)
		return
	}
	idx := f.rr[queue] % len(streams)
	f.rr[queue]++
	streams[idx] <- delivery
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}

	stream := make(chan amqp.Delivery, 128)
	f.consumers[queue] = append(f.consumers[queue], stream)

	for _, delivery := range f.buffered[queue] {
		stream <- delivery
	}
	f.buffered[queue] = nil

	return stream, nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		for _, streams := range f.consumers {
			for _, stream := range streams {
				close(stream)
			}
		}
		f.consumers = make(map[string][]chan amqp.Delivery)
	}
	return f.closeErr
}

func (f *fakeChannel) exchangeDeclareCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchangeDeclares[name]
}

func (f *fakeChannel) queueDeclareCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queueDeclares[name]
}

func (f *fakeChannel) publishedMessages() []fakePublish {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakePublish(nil), f.published...)
}

func (f *fakeChannel) deletedQueues() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
