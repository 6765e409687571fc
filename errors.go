package workq

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDeliveryStreamClosed is the underlying cause reported by a
	// ListenerDiedError when the broker delivery stream closes.
	ErrDeliveryStreamClosed = errors.New("workq: delivery stream closed")
)

// PublishError represents a transport failure during a publish or one of the
// topology declarations a publish performs. It is surfaced to the caller and
// never retried automatically.
type PublishError struct {
	Exchange   string    // Target exchange ("" is the default exchange)
	RoutingKey string    // Routing key used
	Err        error     // Underlying error
	Timestamp  time.Time // When the error occurred
}

func (e *PublishError) Error() string {
	if e.Exchange == "" {
		return fmt.Sprintf("workq publish error: failed to publish to queue %q: %v", e.RoutingKey, e.Err)
	}
	return fmt.Sprintf("workq publish error: failed to publish to exchange %q: %v", e.Exchange, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// SubscribeError represents a failure to set up a subscription: topology
// declaration, binding, or consumer registration.
type SubscribeError struct {
	Queue     string    // Queue name ("" for a server-named broadcast queue)
	Op        string    // Operation that failed
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("workq subscribe error: %s failed for queue %q: %v", e.Op, e.Queue, e.Err)
}

func (e *SubscribeError) Unwrap() error {
	return e.Err
}

// DeliveryError represents a deserialization or handler failure for a single
// message. It is contained within the loop iteration that caused it: logged,
// the message nacked or dropped depending on the loop type, and the loop
// continues.
type DeliveryError struct {
	Queue     string    // Source queue
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("workq delivery error: failed to process message from queue %q: %v", e.Queue, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// ListenerDiedError reports that a subscriber loop's blocking wait for the
// next delivery failed, which means the channel or connection is gone. The
// loop has terminated and will not restart itself; a supervising layer must
// decide what to do.
type ListenerDiedError struct {
	Subscriber string    // Logical subscriber name
	Queue      string    // Queue the loop was consuming
	Err        error     // Underlying error
	Timestamp  time.Time // When the loop terminated
}

func (e *ListenerDiedError) Error() string {
	return fmt.Sprintf("workq listener error: subscriber %q on queue %q has died: %v", e.Subscriber, e.Queue, e.Err)
}

func (e *ListenerDiedError) Unwrap() error {
	return e.Err
}

// AdminError represents a failed administrative operation.
type AdminError struct {
	Queue     string    // Queue the operation targeted
	Op        string    // Operation that failed
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

func (e *AdminError) Error() string {
	return fmt.Sprintf("workq admin error: %s failed for queue %q: %v", e.Op, e.Queue, e.Err)
}

func (e *AdminError) Unwrap() error {
	return e.Err
}
