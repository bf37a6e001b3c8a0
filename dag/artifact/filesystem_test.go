package artifact

import (
	"context"
	"path/filepath"
	"testing"
)

func TestFileSystemStore_SaveLoadRoundTrip(t *testing.T) {
	s := NewFileSystemStore(t.TempDir())
	ctx := context.Background()

	payload := map[string]any{"score": 0.5, "label": "ok"}
	if err := s.Save(ctx, "model", "pipe1", "node1", payload); err != nil {
		t.Fatalf("Save: %v", err)
	}

	v, ok, err := s.Load(ctx, "model", "pipe1", "node1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true after Save")
	}
	got, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("Load returned %T, want map[string]any", v)
	}
	if got["label"] != "ok" {
		t.Fatalf("label = %v, want ok", got["label"])
	}
}

func TestFileSystemStore_LoadMissingIsNotFoundNotError(t *testing.T) {
	s := NewFileSystemStore(t.TempDir())
	_, ok, err := s.Load(context.Background(), "model", "pipe1", "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a never-saved key")
	}
}

func TestFileSystemStore_WritesUnderModelPipelineNodeLayout(t *testing.T) {
	root := t.TempDir()
	s := NewFileSystemStore(root)
	if err := s.Save(context.Background(), "m", "p", "n", 1); err != nil {
		t.Fatalf("Save: %v", err)
	}
	want := filepath.Join(root, "m", "p", "n.json")
	if got := s.path("m", "p", "n"); got != want {
		t.Fatalf("path = %q, want %q", got, want)
	}
}
