// internal/gateway/queue_test.go
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teems-ai/eve/internal/types"
)

func TestQueueConcurrency(t *testing.T) {
	queue := NewQueue(2)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	var running int32
	var maxSeen int32

	queue.SetProcessor(func(turn *Turn) error {
		current := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&maxSeen)
			if current <= old || atomic.CompareAndSwapInt32(&maxSeen, old, current) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	})

	for i := 0; i < 5; i++ {
		turn := NewTurn(types.SessionKey(fmt.Sprintf("session-%d", i)), "t", "u", "hi", nil, nil)
		if err := queue.Enqueue(turn); err != nil {
			t.Fatal(err)
		}
	}

	time.Sleep(500 * time.Millisecond)

	if m := atomic.LoadInt32(&maxSeen); m > 2 {
		t.Errorf("expected max 2 concurrent, saw %d", m)
	}
}

func TestQueueSameSessionOrdering(t *testing.T) {
	queue := NewQueue(4)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	queue.SetProcessor(func(turn *Turn) error {
		mu.Lock()
		order = append(order, turn.Text)
		n := len(order)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return nil
	})

	key := types.SessionKey("same-session")
	for i := 0; i < 3; i++ {
		turn := NewTurn(key, "t", "u", fmt.Sprintf("%d", i), nil, nil)
		if err := queue.Enqueue(turn); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for turns to process")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != fmt.Sprintf("%d", i) {
			t.Errorf("expected order[%d] = %d, got %s", i, i, v)
		}
	}
}

func TestQueueFailureInvokesOnComplete(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	queue.SetProcessor(func(turn *Turn) error {
		return errors.New("provider unavailable")
	})

	results := make(chan *TurnResult, 1)
	turn := NewTurn(types.SessionKey("s"), "t", "u", "hi", nil, nil)
	turn.OnComplete = func(r *TurnResult) { results <- r }
	if err := queue.Enqueue(turn); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-results:
		if r.Err == nil {
			t.Error("expected error in result")
		}
		if r.Content == "" {
			t.Error("expected fallback content for the user")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnComplete")
	}
}

func TestGatewayHandleTurn(t *testing.T) {
	gw := New(1)
	ctx := context.Background()
	gw.Start(ctx)
	defer gw.Stop()

	processed := make(chan *Turn, 1)
	gw.Queue.SetProcessor(func(turn *Turn) error {
		processed <- turn
		return nil
	})

	turn, err := gw.HandleTurn(types.NewSessionKey("t", "s"), "t", "u", "hello", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if turn.Status != TurnStatusQueued && turn.Status != TurnStatusRunning && turn.Status != TurnStatusComplete {
		t.Errorf("unexpected initial status %s", turn.Status)
	}

	select {
	case got := <-processed:
		if got.ID != turn.ID {
			t.Error("expected the same turn through the queue")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for processor")
	}
}
