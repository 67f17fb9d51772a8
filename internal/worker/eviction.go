package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"terrainstream/internal/cache"
	"terrainstream/internal/queue"
	"terrainstream/internal/tile"
)

type EvictRequest struct {
	Key  tile.Key
	Kind RequestKind
}

// EvictResult reports one disk eviction. OK only when both files were
// deleted.
type EvictResult struct {
	Key tile.Key
	OK  bool
	Err error
}

// EvictionWorker deletes evicted tiles from the disk cache in the
// background.
type EvictionWorker struct {
	store    cache.TileStore
	requests *queue.Queue[EvictRequest]
	results  *queue.Queue[EvictResult]
	group    *errgroup.Group
	logger   *zap.Logger
}

func NewEvictionWorker(store cache.TileStore, logger *zap.Logger) *EvictionWorker {
	return &EvictionWorker{
		store:    store,
		requests: queue.New[EvictRequest](),
		results:  queue.New[EvictResult](),
		logger:   logger,
	}
}

func (w *EvictionWorker) Enqueue(key tile.Key) {
	w.requests.Push(EvictRequest{Key: key})
}

// Results is the completion queue drained by the manager.
func (w *EvictionWorker) Results() *queue.Queue[EvictResult] {
	return w.results
}

func (w *EvictionWorker) Start(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(ctx)
	})
	w.group = g
}

func (w *EvictionWorker) Stop(ctx context.Context) error {
	if w.group == nil {
		return nil
	}
	w.requests.Push(EvictRequest{Kind: KindStop})
	return join(ctx, w.group)
}

func (w *EvictionWorker) Run(ctx context.Context) error {
	for {
		batch, err := w.requests.Wait(ctx)
		if err != nil {
			return err
		}

		stop := false
		for _, req := range batch {
			if req.Kind == KindStop {
				stop = true
				continue
			}
			w.results.Push(w.evict(req.Key))
		}
		if stop {
			return nil
		}
	}
}

// evict always attempts both deletions. A missing file counts as a failure.
func (w *EvictionWorker) evict(key tile.Key) EvictResult {
	var errs []error
	for _, kind := range cache.Kinds {
		if err := w.store.Remove(kind, key); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		w.logger.Warn("Failed to evict tile from disk", zap.Stringer("key", key), zap.Error(err))
	} else {
		w.logger.Debug("Evicted tile from disk", zap.Stringer("key", key))
	}

	return EvictResult{Key: key, OK: err == nil, Err: err}
}
