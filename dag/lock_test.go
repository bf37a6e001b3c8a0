package dag

import (
	"sync"
	"testing"
	"time"
)

func TestEvent_WaitBlocksUntilSet(t *testing.T) {
	e := NewEvent()
	done := make(chan struct{})

	go func() {
		e.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Set was called")
	case <-time.After(20 * time.Millisecond):
	}

	e.Set()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Set")
	}
}

func TestEvent_WaitAfterSetReturnsImmediately(t *testing.T) {
	e := NewEvent()
	e.Set()

	done := make(chan struct{})
	go func() {
		e.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait on an already-fired event should return immediately")
	}
}

func TestEvent_SetIsIdempotent(t *testing.T) {
	e := NewEvent()
	e.Set()
	e.Set() // must not panic or deadlock
	if !e.IsSet() {
		t.Fatal("expected IsSet to be true")
	}
}

func TestCondition_WaitRechecksPredicateOnEachBroadcast(t *testing.T) {
	c := NewCondition()
	var mu sync.Mutex
	ready := false

	done := make(chan struct{})
	go func() {
		c.Wait(func() bool {
			mu.Lock()
			defer mu.Unlock()
			return ready
		})
		close(done)
	}()

	// Broadcast while the predicate is still false: the waiter must not
	// wake up.
	c.Broadcast()
	select {
	case <-done:
		t.Fatal("Wait returned before predicate became true")
	case <-time.After(20 * time.Millisecond):
	}

	mu.Lock()
	ready = true
	mu.Unlock()
	c.Broadcast()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after predicate became true and Broadcast was called")
	}
}

func TestLockOrchestrator_EventForIsStableAndResettable(t *testing.T) {
	o := NewLockOrchestrator()
	e1 := o.EventFor("n")
	e2 := o.EventFor("n")
	if e1 != e2 {
		t.Fatal("EventFor should return the same Event for the same id")
	}

	e1.Set()
	o.Reset([]NodeId{"n"})
	e3 := o.EventFor("n")
	if e3 == e1 {
		t.Fatal("Reset should drop the old Event so a fresh one is created")
	}
	if e3.IsSet() {
		t.Fatal("freshly created Event after Reset should not be fired")
	}
}
