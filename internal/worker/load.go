package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"terrainstream/internal/queue"
	"terrainstream/internal/terrain"
	"terrainstream/internal/tile"
	"terrainstream/internal/tile_source"
)

// Loader resolves a tile into a fully derived node.
type Loader interface {
	Load(ctx context.Context, key tile.Key, origin tile_source.Origin) (*terrain.Node, error)
}

// LoadWorker serves one private request queue and reports on a response
// queue shared with the other workers of its pool.
type LoadWorker struct {
	id        int
	requests  *queue.Queue[LoadRequest]
	responses *queue.Queue[LoadResponse]
	loader    Loader
	logger    *zap.Logger
}

func NewLoadWorker(id int, loader Loader, responses *queue.Queue[LoadResponse], logger *zap.Logger) *LoadWorker {
	return &LoadWorker{
		id:        id,
		requests:  queue.New[LoadRequest](),
		responses: responses,
		loader:    loader,
		logger:    logger,
	}
}

func (w *LoadWorker) Requests() *queue.Queue[LoadRequest] {
	return w.requests
}

// Run handles request batches until a stop request has been processed or
// ctx is done.
func (w *LoadWorker) Run(ctx context.Context) error {
	w.logger.Debug("Load worker started", zap.Int("worker", w.id))

	for {
		batch, err := w.requests.Wait(ctx)
		if err != nil {
			return err
		}

		if stop := w.handleBatch(ctx, batch); stop {
			w.responses.Push(LoadResponse{Outcome: OutcomeStopped, Worker: w.id})
			w.logger.Debug("Load worker stopped", zap.Int("worker", w.id))
			return nil
		}
	}
}

// handleBatch processes every request of batch in order. Once a request
// fails, the remaining loads of the batch are answered with an error
// without touching disk or network.
func (w *LoadWorker) handleBatch(ctx context.Context, batch []LoadRequest) bool {
	stop := false
	failed := false

	for _, req := range batch {
		if req.Kind == KindStop {
			stop = true
			continue
		}

		if failed {
			w.responses.Push(LoadResponse{
				RequestID: req.ID,
				Key:       req.Key,
				Outcome:   OutcomeError,
				Origin:    req.Source,
				Err:       errBatchFailed,
				Worker:    w.id,
			})
			continue
		}

		resp := w.handle(ctx, req)
		if resp.Outcome.Failing() {
			failed = true
		}
		w.responses.Push(resp)
	}

	return stop
}

func (w *LoadWorker) handle(ctx context.Context, req LoadRequest) LoadResponse {
	resp := LoadResponse{
		RequestID: req.ID,
		Key:       req.Key,
		Origin:    req.Source,
		Worker:    w.id,
	}

	if req.Source == tile_source.OriginNetwork && req.Offline {
		resp.Outcome = OutcomeOffline
		resp.Err = errOffline
		return resp
	}

	start := time.Now()
	node, err := w.loader.Load(ctx, req.Key, req.Source)
	resp.Duration = time.Since(start)
	resp.Outcome = Classify(err)
	resp.Err = err
	if resp.Outcome == OutcomeOK {
		resp.Node = node
	}

	w.logger.Debug("Tile loaded",
		zap.Int("worker", w.id),
		zap.Stringer("key", req.Key),
		zap.Stringer("origin", req.Source),
		zap.Stringer("outcome", resp.Outcome),
		zap.Duration("duration", resp.Duration),
		zap.Error(err))

	return resp
}
