package dag

import (
	"time"

	"github.com/arrowlane/dagrun/dag/artifact"
	"github.com/arrowlane/dagrun/dag/model"
	"github.com/arrowlane/dagrun/dag/observability"
)

// Option configures an Engine, following the teacher's functional-options
// pattern (graph/options.go).
type Option func(*engineConfig) error

type engineConfig struct {
	pools            WorkerPools
	metrics          *Metrics
	hooks            observability.Hooks
	artifacts        artifact.Store
	costs            *model.CostTracker
	maxConcurrent    int
	runWallClock     time.Duration
	defaultNodeDelay time.Duration
}

func defaultConfig() *engineConfig {
	return &engineConfig{
		pools: WorkerPools{
			Cooperative: NewWorkerPool(1),
			Thread:      NewWorkerPool(8),
		},
		metrics:       NewNoopMetrics(),
		hooks:         observability.NullHooks{},
		artifacts:     artifact.NoopStore{},
		maxConcurrent: 8,
	}
}

// WithWorkerPools overrides the default worker pools. Any pool left nil
// (including Process, which has no default) makes nodes tagged for that
// pool fail fast with ErrMissingPool.
func WithWorkerPools(pools WorkerPools) Option {
	return func(cfg *engineConfig) error {
		cfg.pools = pools
		return nil
	}
}

// WithMaxConcurrent replaces the thread pool with one bounded to n
// concurrent calls. Options apply in order: a later WithWorkerPools replaces
// this pool, and this option replaces a Thread pool set by an earlier one.
func WithMaxConcurrent(n int) Option {
	return func(cfg *engineConfig) error {
		if n < 1 {
			return &ValidationError{Reason: "max concurrent must be >= 1"}
		}
		cfg.maxConcurrent = n
		cfg.pools.Thread = NewWorkerPool(n)
		return nil
	}
}

// WithMetrics installs a Metrics collector; pass NewNoopMetrics() (the
// default) to disable collection, or NewMetrics(registry) to record to
// Prometheus.
func WithMetrics(m *Metrics) Option {
	return func(cfg *engineConfig) error {
		if m == nil {
			return &ValidationError{Reason: "metrics must not be nil"}
		}
		cfg.metrics = m
		return nil
	}
}

// WithHooks installs the observability.Hooks implementation the scheduler
// reports lifecycle events to.
func WithHooks(h observability.Hooks) Option {
	return func(cfg *engineConfig) error {
		if h == nil {
			return &ValidationError{Reason: "hooks must not be nil"}
		}
		cfg.hooks = h
		return nil
	}
}

// WithArtifactStore installs the backing store for node artifacts that
// outlive a single run.
func WithArtifactStore(s artifact.Store) Option {
	return func(cfg *engineConfig) error {
		if s == nil {
			return &ValidationError{Reason: "artifact store must not be nil"}
		}
		cfg.artifacts = s
		return nil
	}
}

// WithRunWallClockBudget bounds a single Run call's total wall-clock time;
// zero (the default) means no budget.
func WithRunWallClockBudget(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		cfg.runWallClock = d
		return nil
	}
}

// WithCostTracker installs a model.CostTracker that the scheduler records
// into whenever a TagModelCall node's result is a model.ChatOut.
func WithCostTracker(ct *model.CostTracker) Option {
	return func(cfg *engineConfig) error {
		if ct == nil {
			return &ValidationError{Reason: "cost tracker must not be nil"}
		}
		cfg.costs = ct
		return nil
	}
}
