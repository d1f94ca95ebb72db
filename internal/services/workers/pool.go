package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitebatch/internal/common"
	"github.com/ternarybob/sitebatch/internal/interfaces"
	"github.com/ternarybob/sitebatch/internal/models"
)

// Pool runs item executions on a fixed set of goroutines, decoupled from
// the request-serving path. Every failure inside a unit of work - error or
// panic - is caught at the bridge boundary and recorded as item status
// error with the failure description as result; nothing propagates into
// orchestration internals.
type Pool struct {
	store       interfaces.GroupStorage
	bridge      interfaces.ExecutionBridge
	renderer    interfaces.Renderer
	logger      arbor.ILogger
	concurrency int

	queue    chan string
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPool creates a worker pool
func NewPool(config *common.WorkersConfig, store interfaces.GroupStorage, bridge interfaces.ExecutionBridge, renderer interfaces.Renderer, logger arbor.ILogger) *Pool {
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Pool{
		store:       store,
		bridge:      bridge,
		renderer:    renderer,
		logger:      logger,
		concurrency: config.Concurrency,
		queue:       make(chan string, queueSize),
	}
}

// Start launches the worker goroutines
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for itemID := range p.queue {
				p.execute(ctx, itemID)
			}
		}()
	}
	p.logger.Info().Int("concurrency", p.concurrency).Msg("Worker pool started")
}

// Enqueue hands item ids to the pool without blocking the caller. A full
// queue drops the item with a log line; it stays queued in the store.
func (p *Pool) Enqueue(itemIDs ...string) {
	for _, id := range itemIDs {
		select {
		case p.queue <- id:
		default:
			p.logger.Error().Str("item_id", id).Msg("Worker queue full - item not scheduled")
		}
	}
}

// Stop closes the queue and waits for in-flight executions to finish
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
	p.logger.Info().Msg("Worker pool stopped")
}

func (p *Pool) execute(ctx context.Context, itemID string) {
	workerID := uuid.New().String()

	if err := p.bridge.MarkStarted(ctx, itemID, workerID); err != nil {
		p.logger.Error().Err(err).Str("item_id", itemID).Msg("Failed to mark item started")
		return
	}

	item, err := p.store.GetItem(ctx, itemID)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			p.logger.Error().Err(err).Str("item_id", itemID).Msg("Failed to load item")
		}
		// Group deleted before the work began; nothing left to do
		return
	}

	ok, result := p.render(ctx, item)
	if err := p.bridge.MarkDone(ctx, itemID, ok, result); err != nil {
		p.logger.Error().Err(err).Str("item_id", itemID).Msg("Failed to mark item done")
	}
}

// render invokes the renderer with panics converted into a failed result
func (p *Pool) render(ctx context.Context, item *models.JobItem) (ok bool, result string) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			result = fmt.Sprintf("panic: %v", r)
			p.logger.Error().Str("item_id", item.ID).Str("panic", result).Msg("Renderer panicked")
		}
	}()

	if _, err := p.renderer.Render(ctx, item); err != nil {
		return false, err.Error()
	}
	return true, "ok"
}
