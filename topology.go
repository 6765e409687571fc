package workq

import (
	"fmt"
	"sync"
)

// topologyCache tracks which exchange and queue names have already been
// declared on the current channel, so the lazy ensure calls hit the broker
// at most once per distinct name. The cache lives and dies with the channel:
// replacing the channel requires a Reset.
//
// Exchanges and queues share one namespace here, matching the single set the
// broker-side declarations are keyed on in practice.
type topologyCache struct {
	mu       sync.Mutex
	channel  Channel
	declared map[string]struct{}
}

func newTopologyCache(channel Channel) *topologyCache {
	return &topologyCache{
		channel:  channel,
		declared: make(map[string]struct{}),
	}
}

// EnsureExchange declares the exchange unless this cache has already seen the
// name. The check-declare-insert sequence runs under the cache lock so
// concurrent first use from publishers and subscribers still yields exactly
// one declare call.
func (t *topologyCache) EnsureExchange(name, kind string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.declared[name]; ok {
		return nil
	}

	err := t.channel.ExchangeDeclare(
		name,
		kind,
		false, // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", name, err)
	}

	t.declared[name] = struct{}{}
	return nil
}

// EnsureQueue declares the named queue as durable, non-exclusive and
// non-auto-delete, unless this cache has already seen the name.
func (t *topologyCache) EnsureQueue(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.declared[name]; ok {
		return nil
	}

	_, err := t.channel.QueueDeclare(
		name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}

	t.declared[name] = struct{}{}
	return nil
}

// Reset forgets every declared name. Call when the channel is replaced; the
// broker-side resources may still exist but the new channel must confirm
// them again.
func (t *topologyCache) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.declared = make(map[string]struct{})
}
