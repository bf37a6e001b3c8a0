package dag

import (
	"context"
	"errors"
)

// errBoom is a generic sentinel used across tests where the exact error
// identity matters but its message does not.
var errBoom = errors.New("boom")

// identityFunc returns kwargs[key] unchanged, used for simple passthrough
// nodes (switch/one-of consumers, pipeline input nodes) in tests.
func identityFunc(key string) NodeFunc {
	return func(_ context.Context, kwargs map[string]any) (any, error) {
		return kwargs[key], nil
	}
}

// constFunc always returns value, ignoring kwargs.
func constFunc(value any) NodeFunc {
	return func(_ context.Context, _ map[string]any) (any, error) {
		return value, nil
	}
}

// failFunc always fails with err.
func failFunc(err error) NodeFunc {
	return func(_ context.Context, _ map[string]any) (any, error) {
		return nil, err
	}
}

// testPools returns a WorkerPools suitable for NewEngine in tests: small,
// bounded pools for every lane a test graph might route work to.
func testPools() WorkerPools {
	return WorkerPools{
		Cooperative: NewWorkerPool(4),
		Thread:      NewWorkerPool(4),
		Process:     NewWorkerPool(4),
	}
}
