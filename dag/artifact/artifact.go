// Package artifact provides pluggable storage for node results that outlive
// a single pipeline run, adapted from the teacher's graph/store package and
// grounded on the source system's artifact_store package (original_source/
// ml_pipeline_engine/artifact_store).
package artifact

import "context"

// Store persists a node's artifact keyed by (modelName, pipelineID, nodeID)
// and retrieves it later, independent of the in-run ResultStore. Saves are
// best-effort from the scheduler's point of view: a Store failure is logged
// via hooks but never blocks or fails the pipeline run (spec §9 design
// notes).
type Store interface {
	Save(ctx context.Context, modelName, pipelineID, nodeID string, value any) error
	Load(ctx context.Context, modelName, pipelineID, nodeID string) (any, bool, error)
}
