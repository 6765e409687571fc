// Package contracts defines the message payload type exchanged over the
// work-queue transport.
//
// Payloads are opaque JSON documents. This package guarantees lossless
// serialization and nothing else; interpreting message content is the
// application's job.
package contracts
