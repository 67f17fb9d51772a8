package worker

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"terrainstream/internal/queue"
)

// Pool is a fixed set of load workers fed round-robin. Dispatch is meant to
// be called from a single goroutine.
type Pool struct {
	workers   []*LoadWorker
	responses *queue.Queue[LoadResponse]
	next      int
	group     *errgroup.Group
	logger    *zap.Logger
}

func NewPool(size int, loader Loader, logger *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}

	responses := queue.New[LoadResponse]()
	workers := make([]*LoadWorker, size)
	for i := range workers {
		workers[i] = NewLoadWorker(i, loader, responses, logger)
	}

	return &Pool{
		workers:   workers,
		responses: responses,
		logger:    logger,
	}
}

func (p *Pool) Size() int {
	return len(p.workers)
}

// Responses is the queue all workers report on.
func (p *Pool) Responses() *queue.Queue[LoadResponse] {
	return p.responses
}

// Dispatch hands req to the next worker in turn and returns its index.
func (p *Pool) Dispatch(req LoadRequest) int {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	i := p.next
	p.workers[i].Requests().Push(req)
	p.next = (p.next + 1) % len(p.workers)
	return i
}

func (p *Pool) Start(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		w := w
		g.Go(func() error {
			return w.Run(ctx)
		})
	}
	p.group = g

	p.logger.Info("Load workers started", zap.Int("workers", len(p.workers)))
}

// Stop asks every worker to finish its current batch and exit, then waits
// for all of them or for ctx.
func (p *Pool) Stop(ctx context.Context) error {
	if p.group == nil {
		return nil
	}

	for _, w := range p.workers {
		w.Requests().Push(LoadRequest{Kind: KindStop})
	}

	return join(ctx, p.group)
}

func join(ctx context.Context, g *errgroup.Group) error {
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
