package observability

import "raydium-pool-watch/internal/event"

// CountingEmitter wraps another emitter and counts every event by type.
// Ready events additionally feed the tee-up-to-open latency histogram.
type CountingEmitter struct {
	next    event.Emitter
	metrics *Metrics
}

// NewCountingEmitter wraps next with event counting. A nil metrics uses
// the default instance.
func NewCountingEmitter(next event.Emitter, metrics *Metrics) *CountingEmitter {
	if metrics == nil {
		metrics = DefaultMetrics
	}
	return &CountingEmitter{next: next, metrics: metrics}
}

// Emit counts the event and forwards it.
func (c *CountingEmitter) Emit(ev event.PoolEvent) {
	c.metrics.EventsEmitted.WithLabelValues(ev.Type).Inc()
	switch ev.Type {
	case event.TypeError:
		c.metrics.PoolsFailed.Inc()
	case event.TypeReady:
		if ev.Data.TimeToStatusSixMs > 0 {
			c.metrics.TimeToStatusSix.Observe(float64(ev.Data.TimeToStatusSixMs) / 1000)
		}
	}
	c.next.Emit(ev)
}
