// Package rabbitmq contains the connection plumbing for the work-queue
// repository: dialing the broker, opening the shared channel, and the typed
// errors surfaced when either fails.
//
// The package deliberately does not reconnect. When the connection dies the
// subscriber loops terminate loudly and an external supervisor decides what
// to do; healing the connection underneath a live topology cache would
// silently invalidate it.
package rabbitmq
