package logging

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilianp07/vpp/core/model"
)

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	// Roughly 600 bytes per record, 4000 records exceed the 1 MB limit.
	allocs := model.Allocations{}
	for i := 1; i <= 40; i++ {
		allocs[i] = float64(i)
	}
	rec := sampleRecord("d", time.Now(), allocs)
	for i := 0; i < 4000; i++ {
		if err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	backups, _ := filepath.Glob(filepath.Join(dir, "log-*.jsonl"))
	if len(backups) == 0 {
		t.Fatalf("expected rotated files")
	}
	out, err := store.Query(context.Background(), LogQuery{PlantID: 40})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("expected records across rotated files")
	}
}

func TestRotatingJSONLStore_Query(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "log.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	_ = store.Append(context.Background(), sampleRecord("d1", time.Now(), model.Allocations{7: 1}))
	out, err := store.Query(context.Background(), LogQuery{PlantID: 7})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 1 || out[0].DispatchID != "d1" {
		t.Fatalf("unexpected records %#v", out)
	}
}
