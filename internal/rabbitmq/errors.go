package rabbitmq

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	// ErrNotConnected is returned when no connection has been established.
	ErrNotConnected = errors.New("rabbitmq: not connected")

	// ErrConnectionClosed is returned when the connection has been closed.
	ErrConnectionClosed = errors.New("rabbitmq: connection is closed")

	// ErrConnectionTimeout is returned when dialing exceeds the dial timeout.
	ErrConnectionTimeout = errors.New("rabbitmq: connection timeout")
)

// ConnectionError represents a failure to establish or use the broker
// connection.
type ConnectionError struct {
	Op        string    // Operation that failed
	URL       string    // Connection URL (sanitized)
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rabbitmq connection error: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ChannelError represents a failure to open or close a channel.
type ChannelError struct {
	Op        string    // Operation that failed
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("rabbitmq channel error: %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// SanitizeURL strips credentials from a broker URL so it can be logged.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	return u.String()
}
