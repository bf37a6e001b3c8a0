package artifact

import "context"

// NoopStore discards every save and never finds anything on load, mirroring
// the source system's NoOpArtifactStore. Useful when a pipeline's nodes
// carry TagSkipStore universally and no backing store is wired.
type NoopStore struct{}

// Save implements Store.
func (NoopStore) Save(context.Context, string, string, string, any) error { return nil }

// Load implements Store.
func (NoopStore) Load(context.Context, string, string, string) (any, bool, error) {
	return nil, false, nil
}
