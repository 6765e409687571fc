package workq

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBasicMetricsCollector(t *testing.T) {
	t.Run("counts publishes and failures", func(t *testing.T) {
		c := NewBasicMetricsCollector()

		c.RecordPublish(BroadcastExchangeName, "", time.Millisecond, true)
		c.RecordPublish("", "jobs", time.Millisecond, true)
		c.RecordPublish("", "jobs", time.Millisecond, false)

		stats := c.GetStats()
		assert.Equal(t, int64(2), stats.MessagesPublished)
		assert.Equal(t, int64(1), stats.PublishFailures)
	})

	t.Run("tracks processing outcomes and average latency", func(t *testing.T) {
		c := NewBasicMetricsCollector()

		c.RecordMessage("jobs", 10*time.Millisecond, true)
		c.RecordMessage("jobs", 30*time.Millisecond, true)
		c.RecordMessage("jobs", 20*time.Millisecond, false)

		stats := c.GetStats()
		assert.Equal(t, int64(2), stats.MessagesProcessed)
		assert.Equal(t, int64(1), stats.MessagesFailed)
		assert.Equal(t, 20*time.Millisecond, stats.AverageProcessTime)
	})

	t.Run("counts listener deaths", func(t *testing.T) {
		c := NewBasicMetricsCollector()

		c.RecordListenerDeath("graph-worker")
		c.RecordListenerDeath("broadcast")

		assert.Equal(t, int64(2), c.GetStats().ListenerDeaths)
	})

	t.Run("is safe under concurrent use", func(t *testing.T) {
		c := NewBasicMetricsCollector()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					c.RecordMessage("jobs", time.Millisecond, true)
					c.RecordPublish("", "jobs", time.Millisecond, true)
				}
			}()
		}
		wg.Wait()

		stats := c.GetStats()
		assert.Equal(t, int64(800), stats.MessagesProcessed)
		assert.Equal(t, int64(800), stats.MessagesPublished)
	})
}

func TestNoOpMetricsCollector(t *testing.T) {
	c := &NoOpMetricsCollector{}

	assert.NotPanics(t, func() {
		c.RecordPublish(BroadcastExchangeName, "", time.Millisecond, true)
		c.RecordMessage("jobs", time.Millisecond, false)
		c.RecordListenerDeath("broadcast")
	})
}
