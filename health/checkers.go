package health

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/graphmill/workq-go/internal/rabbitmq"
)

// ConnectionChecker checks the broker connection by opening and closing a
// throwaway channel.
type ConnectionChecker struct {
	connManager *rabbitmq.ConnectionManager
}

// NewConnectionChecker creates a new connection health checker.
func NewConnectionChecker(connManager *rabbitmq.ConnectionManager) *ConnectionChecker {
	return &ConnectionChecker{connManager: connManager}
}

func (c *ConnectionChecker) Name() string {
	return "rabbitmq"
}

func (c *ConnectionChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	conn, err := c.connManager.GetConnection()
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = "Failed to get connection"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	ch, err := conn.Channel()
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = "Failed to create channel"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}
	defer ch.Close()

	result.Status = StatusHealthy
	result.Message = "Connection is healthy"
	result.Duration = time.Since(start)
	result.Details["connection_open"] = !conn.IsClosed()
	result.Details["response_time_ms"] = result.Duration.Milliseconds()

	return result
}

// QueueInspector is the channel capability the queue checker consumes.
// *amqp.Channel satisfies it.
type QueueInspector interface {
	QueueInspect(name string) (amqp.Queue, error)
}

// QueueChecker checks that a queue exists and is not backing up.
type QueueChecker struct {
	queueName        string
	inspector        QueueInspector
	backlogThreshold int
}

// NewQueueChecker creates a checker for the named queue. A backlog above
// backlogThreshold degrades the check; zero means no threshold.
func NewQueueChecker(queueName string, inspector QueueInspector, backlogThreshold int) *QueueChecker {
	return &QueueChecker{
		queueName:        queueName,
		inspector:        inspector,
		backlogThreshold: backlogThreshold,
	}
}

func (c *QueueChecker) Name() string {
	return fmt.Sprintf("queue_%s", c.queueName)
}

func (c *QueueChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	queue, err := c.inspector.QueueInspect(c.queueName)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("Queue %s not accessible", c.queueName)
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	result.Status = StatusHealthy
	result.Message = fmt.Sprintf("Queue %s is accessible", c.queueName)
	result.Details["queue_name"] = queue.Name
	result.Details["message_count"] = queue.Messages
	result.Details["consumer_count"] = queue.Consumers

	if c.backlogThreshold > 0 && queue.Messages > c.backlogThreshold {
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("Queue %s has high message count", c.queueName)
	}

	result.Duration = time.Since(start)
	return result
}
