// Package workq is a work-queue layer on top of a RabbitMQ transport.
//
// It provides two delivery semantics to the rest of a distributed
// application:
//
//   - Broadcast: fire-and-forget fanout to every interested listener.
//     Deliveries are auto-acknowledged; a listener that fails to process a
//     message simply misses it.
//
//   - Work queues: durable point-to-point distribution with explicit
//     acknowledgement. Competing consumers on the same queue each receive a
//     disjoint subset of messages; a handler failure nacks the delivery
//     without requeueing it to the same consumer.
//
// The Repository owns one connection, one shared channel, and a topology
// cache that declares each exchange and queue lazily, exactly once per
// channel lifetime. Subscriber loops run as long-lived goroutines that
// terminate loudly through the listener error handler when the connection
// dies; reconnection is left to an external supervisor.
package workq
