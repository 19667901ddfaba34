package event

import (
	"sync"

	"go.uber.org/zap"
)

// ChannelEmitter delivers events to a buffered channel. When the
// consumer falls behind the oldest waiting event is dropped so the
// stream stays current.
type ChannelEmitter struct {
	ch      chan PoolEvent
	mu      sync.Mutex
	dropped uint64
	logger  *zap.Logger
}

// NewChannelEmitter creates an emitter with the given buffer size.
func NewChannelEmitter(buffer int, logger *zap.Logger) *ChannelEmitter {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelEmitter{
		ch:     make(chan PoolEvent, buffer),
		logger: logger,
	}
}

// Events returns the consumer side of the stream.
func (e *ChannelEmitter) Events() <-chan PoolEvent {
	return e.ch
}

// Emit enqueues an event, evicting the oldest buffered event if full.
func (e *ChannelEmitter) Emit(ev PoolEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		select {
		case e.ch <- ev:
			return
		default:
			select {
			case old := <-e.ch:
				e.dropped++
				e.logger.Warn("event buffer full, dropping oldest",
					zap.String("dropped_type", old.Type),
					zap.String("dropped_pool", old.PoolID),
					zap.Uint64("total_dropped", e.dropped))
			default:
			}
		}
	}
}

// Dropped returns how many events have been evicted.
func (e *ChannelEmitter) Dropped() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// LogEmitter writes events to a structured logger.
type LogEmitter struct {
	logger *zap.Logger
}

func NewLogEmitter(logger *zap.Logger) *LogEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEmitter{logger: logger.Named("event")}
}

func (e *LogEmitter) Emit(ev PoolEvent) {
	fields := []zap.Field{
		zap.String("type", ev.Type),
		zap.String("pool_id", ev.PoolID),
		zap.Int64("timestamp_ms", ev.TimestampMs),
	}
	if ev.Data.BaseToken != "" {
		fields = append(fields, zap.String("base_token", ev.Data.BaseToken))
	}
	if ev.Data.QuoteToken != "" {
		fields = append(fields, zap.String("quote_token", ev.Data.QuoteToken))
	}
	if ev.Data.PoolOpenTime != 0 {
		fields = append(fields, zap.Int64("pool_open_time", ev.Data.PoolOpenTime))
	}
	if ev.Data.MissedTeeUp {
		fields = append(fields, zap.Bool("missed_tee_up", true))
	}
	if ev.Data.TimeToStatusSixMs != 0 {
		fields = append(fields, zap.Int64("time_to_status_six_ms", ev.Data.TimeToStatusSixMs))
	}

	if ev.Type == TypeError {
		fields = append(fields, zap.String("reason", ev.Data.Reason))
		e.logger.Warn("pool event", fields...)
		return
	}
	e.logger.Info("pool event", fields...)
}

// MultiEmitter fans out each event to every wrapped emitter.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(ev PoolEvent) {
	for _, e := range m {
		e.Emit(ev)
	}
}
