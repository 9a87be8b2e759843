package archive

import (
	"context"
	"time"

	"github.com/route-beacon/mrtarchive/internal/metrics"
	"go.uber.org/zap"
)

// Item is one unit of work pushed onto a Pipeline. Exactly one of RIB,
// State, or Message is populated.
type Item struct {
	RIB     []RIBRow
	State   *StateRow
	Message *MessageRow
}

type Pipeline struct {
	store         *Store
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger
}

func NewPipeline(store *Store, batchSize, flushIntervalMs int, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:         store,
		batchSize:     batchSize,
		flushInterval: time.Duration(flushIntervalMs) * time.Millisecond,
		logger:        logger,
	}
}

// Run drains items until the channel closes or ctx is cancelled,
// flushing whenever any one of the three batches reaches batchSize or
// the flush ticker fires.
func (p *Pipeline) Run(ctx context.Context, items <-chan Item) {
	var ribBatch []RIBRow
	var stateBatch []StateRow
	var messageBatch []MessageRow

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	flush := func(ctx context.Context) {
		if len(ribBatch) == 0 && len(stateBatch) == 0 && len(messageBatch) == 0 {
			return
		}
		p.flush(ctx, ribBatch, stateBatch, messageBatch)
		ribBatch, stateBatch, messageBatch = nil, nil, nil
	}

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(shutdownCtx)
			cancel()
			return

		case item, ok := <-items:
			if !ok {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				flush(shutdownCtx)
				cancel()
				return
			}

			switch {
			case item.RIB != nil:
				ribBatch = append(ribBatch, item.RIB...)
			case item.State != nil:
				stateBatch = append(stateBatch, *item.State)
			case item.Message != nil:
				messageBatch = append(messageBatch, *item.Message)
			}

			if len(ribBatch) >= p.batchSize || len(stateBatch) >= p.batchSize || len(messageBatch) >= p.batchSize {
				flush(ctx)
			}

		case <-ticker.C:
			flush(ctx)
		}
	}
}

func (p *Pipeline) flush(ctx context.Context, ribBatch []RIBRow, stateBatch []StateRow, messageBatch []MessageRow) {
	if n, err := p.store.FlushRIB(ctx, ribBatch); err != nil {
		p.logger.Error("archive rib batch flush failed", zap.Error(err))
	} else if n > 0 {
		metrics.BatchSize.WithLabelValues("mrt_rib_entries").Observe(float64(len(ribBatch)))
	}

	if n, err := p.store.FlushState(ctx, stateBatch); err != nil {
		p.logger.Error("archive state batch flush failed", zap.Error(err))
	} else if n > 0 {
		metrics.BatchSize.WithLabelValues("mrt_state_changes").Observe(float64(len(stateBatch)))
	}

	if n, err := p.store.FlushMessages(ctx, messageBatch); err != nil {
		p.logger.Error("archive message batch flush failed", zap.Error(err))
	} else if n > 0 {
		metrics.BatchSize.WithLabelValues("mrt_messages").Observe(float64(len(messageBatch)))
	}
}
