package dag

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	p := NewWorkerPool(2)
	var inflight, maxSeen int32
	var wg sync.WaitGroup
	wg.Add(5)

	for i := 0; i < 5; i++ {
		go func() {
			defer wg.Done()
			_, _ = p.Submit(context.Background(), func(_ context.Context) (any, error) {
				n := atomic.AddInt32(&inflight, 1)
				for {
					cur := atomic.LoadInt32(&maxSeen)
					if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&inflight, -1)
				return nil, nil
			})
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxSeen); got > 2 {
		t.Fatalf("max concurrent in-flight = %d, want <= 2", got)
	}
}

func TestWorkerPool_RecoversPanicAsError(t *testing.T) {
	p := NewWorkerPool(1)
	_, err := p.Submit(context.Background(), func(_ context.Context) (any, error) {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected an error from a panicking task")
	}
}

func TestWorkerPool_ContextCancelUnblocksSubmit(t *testing.T) {
	p := NewWorkerPool(1)
	block := make(chan struct{})
	go func() {
		_, _ = p.Submit(context.Background(), func(_ context.Context) (any, error) {
			<-block
			return nil, nil
		})
	}()
	time.Sleep(10 * time.Millisecond) // let the first task claim the only slot

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Submit(ctx, func(_ context.Context) (any, error) { return nil, nil })
	if err == nil {
		t.Fatal("expected Submit to fail fast on an already-canceled context")
	}
	close(block)
}

func TestPoolFor_RoutesByTag(t *testing.T) {
	cases := []struct {
		tags TagSet
		want PoolKind
	}{
		{nil, PoolThread},
		{NewTagSet(TagCooperative), PoolCooperative},
		{NewTagSet(TagProcess), PoolProcess},
	}
	for _, c := range cases {
		if got := poolFor(c.tags); got != c.want {
			t.Fatalf("poolFor(%v) = %v, want %v", c.tags, got, c.want)
		}
	}
}
