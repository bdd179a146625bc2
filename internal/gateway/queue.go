// internal/gateway/queue.go
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/teems-ai/eve/internal/stream"
	"github.com/teems-ai/eve/internal/types"
)

// Queue manages per-session lanes with a global concurrency semaphore.
// Each session gets its own FIFO channel (lane) so that turns within a
// session are processed sequentially, while the semaphore limits the
// total number of concurrent turn processors across all sessions.
type Queue struct {
	lanes     map[types.SessionKey]chan *Turn
	semaphore *semaphore.Weighted
	processor func(*Turn) error
	active    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// NewQueue creates a Queue that allows up to maxConcurrent turns to
// execute simultaneously across all session lanes.
func NewQueue(maxConcurrent int64) *Queue {
	return &Queue{
		lanes:     make(map[types.SessionKey]chan *Turn),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for
// in-flight processors to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	for _, lane := range q.lanes {
		close(lane)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds a Turn to the session's lane, creating the lane (and its
// goroutine) on first use. Returns an error if the lane's buffer is full.
func (q *Queue) Enqueue(turn *Turn) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	lane, exists := q.lanes[turn.Key]
	if !exists {
		lane = make(chan *Turn, 100)
		q.lanes[turn.Key] = lane
		q.wg.Add(1)
		go q.processLane(turn.Key, lane)
	}

	select {
	case lane <- turn:
		return nil
	default:
		return fmt.Errorf("queue full for session %s", turn.Key)
	}
}

// processLane drains a single session lane, acquiring a semaphore slot
// before running the processor synchronously. This ensures strict FIFO
// ordering within a session while the semaphore limits cross-session
// parallelism.
func (q *Queue) processLane(key types.SessionKey, lane chan *Turn) {
	defer q.wg.Done()
	for {
		select {
		case turn, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				return
			}
			if q.processor != nil {
				q.active.Add(1)
				if turn.Ctx == nil {
					turn.Ctx = q.ctx
				}
				turn.Status = TurnStatusRunning
				if err := q.processor(turn); err != nil {
					turn.Status = TurnStatusFailed
					slog.Error("turn failed", "turn_id", string(turn.ID), "session_key", string(turn.Key), "error", err)
					if turn.OnComplete != nil {
						turn.OnComplete(&TurnResult{
							Content: "Something went wrong on my end. Please try again.",
							Err:     err,
						})
					}
				} else {
					turn.Status = TurnStatusComplete
				}
				q.active.Add(-1)
			}
			q.semaphore.Release(1)
		case <-q.ctx.Done():
			return
		}
	}
}

// WaitIdle blocks until no turns are actively being processed, or the
// timeout expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// SetProcessor sets the function invoked for each dequeued Turn.
func (q *Queue) SetProcessor(fn func(*Turn) error) {
	q.processor = fn
}

// Gateway accepts inbound turns and enqueues them for processing.
type Gateway struct {
	Queue *Queue
}

// New creates a Gateway with the given concurrency limit for
// simultaneous turn processing.
func New(maxConcurrent int64) *Gateway {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Gateway{Queue: NewQueue(maxConcurrent)}
}

// Start initialises the gateway's queue.
func (g *Gateway) Start(ctx context.Context) {
	g.Queue.Start(ctx)
}

// Stop stops the queue and waits for outstanding work to finish.
func (g *Gateway) Stop() {
	g.Queue.Stop()
}

// TurnOption configures optional behavior on a Turn.
type TurnOption func(*Turn)

// WithOnComplete sets a callback invoked when the turn finishes.
func WithOnComplete(fn func(*TurnResult)) TurnOption {
	return func(t *Turn) { t.OnComplete = fn }
}

// WithContext attaches the client's request context to the turn.
func WithContext(ctx context.Context) TurnOption {
	return func(t *Turn) { t.Ctx = ctx }
}

// HandleTurn wraps the message in a Turn and enqueues it.
func (g *Gateway) HandleTurn(key types.SessionKey, tenantID, userID, text string, fileIDs []types.FileID, sink stream.Sink, opts ...TurnOption) (*Turn, error) {
	turn := NewTurn(key, tenantID, userID, text, fileIDs, sink)
	for _, opt := range opts {
		opt(turn)
	}
	if err := g.Queue.Enqueue(turn); err != nil {
		return nil, err
	}
	return turn, nil
}
