package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"raydium-pool-watch/internal/domain"
	"raydium-pool-watch/internal/event"
	"raydium-pool-watch/internal/lifecycle"
	"raydium-pool-watch/internal/storage"
)

// recorder persists the pool lifecycle to the pool store by consuming
// the event stream. Persistence is observational: a failed write never
// blocks the tracker.
type recorder struct {
	tracker *lifecycle.Tracker
	store   storage.PoolStore
	logger  *zap.Logger
}

func newRecorder(tracker *lifecycle.Tracker, store storage.PoolStore, logger *zap.Logger) *recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &recorder{tracker: tracker, store: store, logger: logger.Named("recorder")}
}

// run consumes events until the channel closes or ctx is done.
func (r *recorder) run(ctx context.Context, events <-chan event.PoolEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.record(ctx, ev)
		}
	}
}

func (r *recorder) record(ctx context.Context, ev event.PoolEvent) {
	var err error
	switch ev.Type {
	case event.TypeTeedUp:
		err = r.insert(ctx, ev)
	case event.TypeStatusSix:
		err = r.store.UpdateStage(ctx, ev.PoolID, "status_six", nil)
	case event.TypeReady:
		if ev.Data.MissedTeeUp {
			// No teed_up preceded this pool; create the row now.
			if err = r.insert(ctx, ev); err != nil {
				break
			}
		}
		var tts *int64
		if ev.Data.TimeToStatusSixMs > 0 {
			v := ev.Data.TimeToStatusSixMs
			tts = &v
		}
		err = r.store.UpdateStage(ctx, ev.PoolID, "monitoring", tts)
	case event.TypeError:
		err = r.store.UpdateStage(ctx, ev.PoolID, "failed", nil)
		if errors.Is(err, storage.ErrNotFound) {
			// The pool failed before it was ever persisted.
			err = nil
		}
	}
	if err != nil {
		r.logger.Warn("persist lifecycle event",
			zap.String("pool", ev.PoolID),
			zap.String("type", ev.Type),
			zap.Error(err))
	}
}

func (r *recorder) insert(ctx context.Context, ev event.PoolEvent) error {
	p, ok := r.tracker.Lookup(ev.PoolID)
	if !ok {
		// Already swept; nothing authoritative left to persist.
		return nil
	}
	rec := &domain.PoolRecord{
		PoolID:       p.PoolID,
		BaseMint:     p.BaseMint,
		QuoteMint:    p.QuoteMint,
		BaseVault:    p.BaseVault,
		QuoteVault:   p.QuoteVault,
		PoolOpenTime: p.PoolOpenTime,
		DetectedAtMs: p.DetectedAt.UnixMilli(),
		Stage:        p.Stage.String(),
		MissedTeeUp:  p.MissedTeeUp,
	}
	err := r.store.Insert(ctx, rec)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	return err
}
