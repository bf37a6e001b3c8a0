package dag

import "sync"

// Event is a one-shot sticky signal: once Set, every past and future Wait
// call returns immediately (spec §4.2). The zero value is not usable; use
// NewEvent.
type Event struct {
	mu    sync.Mutex
	cond  *sync.Cond
	fired bool
}

// NewEvent returns an unfired Event.
func NewEvent() *Event {
	e := &Event{}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Set fires the event, waking every current and future waiter. Idempotent.
func (e *Event) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fired {
		return
	}
	e.fired = true
	e.cond.Broadcast()
}

// IsSet reports whether the event has fired.
func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fired
}

// Wait blocks until the event fires. No OS lock is held across this call
// returning to the caller (spec §4.2 "no lock held across user code").
func (e *Event) Wait() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for !e.fired {
		e.cond.Wait()
	}
}

// Condition is a broadcastable predicate wait: goroutines block in Wait
// until some other goroutine calls Broadcast and the supplied predicate
// holds (spec §4.2). Unlike Event it is not sticky — Broadcast only wakes
// goroutines already waiting at the time of the call, so callers must
// re-check predicate state themselves (Wait does this in a loop).
type Condition struct {
	mu   sync.Mutex
	cond *sync.Cond
}

// NewCondition returns a ready Condition.
func NewCondition() *Condition {
	c := &Condition{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Broadcast wakes every goroutine currently blocked in Wait, so they
// re-evaluate their predicate. Call this after any state change a waiter
// might care about (spec §4.2 "happens-before via condition broadcast
// after store write").
func (c *Condition) Broadcast() {
	c.mu.Lock()
	c.cond.Broadcast()
	c.mu.Unlock()
}

// Wait blocks until predicate() returns true, re-checking it each time
// Broadcast wakes this goroutine. predicate must not itself try to acquire
// c's lock.
func (c *Condition) Wait(predicate func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for !predicate() {
		c.cond.Wait()
	}
}

// LockOrchestrator bundles the per-run coordination primitives the
// scheduler needs: one Event per node (has this node's result been
// published at least once, including via default-substitution) and one
// shared Condition used to wake readiness-waiters after any store write
// (spec §4.2).
type LockOrchestrator struct {
	mu     sync.Mutex
	events map[NodeId]*Event
	ready  *Condition
}

// NewLockOrchestrator returns an orchestrator with no events yet registered.
func NewLockOrchestrator() *LockOrchestrator {
	return &LockOrchestrator{
		events: make(map[NodeId]*Event),
		ready:  NewCondition(),
	}
}

// EventFor returns id's Event, creating it on first access.
func (o *LockOrchestrator) EventFor(id NodeId) *Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.events[id]
	if !ok {
		e = NewEvent()
		o.events[id] = e
	}
	return e
}

// Ready returns the shared readiness Condition.
func (o *LockOrchestrator) Ready() *Condition {
	return o.ready
}

// Reset clears per-node events, used when starting a fresh recurrent
// iteration so re-entered nodes can be awaited again.
func (o *LockOrchestrator) Reset(ids []NodeId) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range ids {
		delete(o.events, id)
	}
}
