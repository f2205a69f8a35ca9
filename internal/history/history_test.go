package history

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBatchLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.BeginBatch(ctx, "install")
	if err != nil {
		t.Fatalf("BeginBatch: %v", err)
	}

	if err := s.RecordOutcome(ctx, id, "core", "installed", ""); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}
	if err := s.RecordOutcome(ctx, id, "commands", "failed", "manifest source missing"); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}
	// Upsert: a later state for the same component replaces the first.
	if err := s.RecordOutcome(ctx, id, "commands", "installed", ""); err != nil {
		t.Fatalf("RecordOutcome upsert: %v", err)
	}

	if err := s.FinishBatch(ctx, id, true, "/install/backups/starforge_20260502_113000.tar.gz"); err != nil {
		t.Fatalf("FinishBatch: %v", err)
	}

	batches, err := s.RecentBatches(ctx, 10)
	if err != nil {
		t.Fatalf("RecentBatches: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("RecentBatches = %d rows, want 1", len(batches))
	}
	b := batches[0]
	if b.Kind != "install" || !b.OK || !b.Finished {
		t.Errorf("batch = %+v", b)
	}
	if b.StartedAt.IsZero() {
		t.Error("started_at not parsed")
	}
	if b.BackupPath == "" {
		t.Error("backup path not journaled")
	}

	outcomes, err := s.Outcomes(ctx, id)
	if err != nil {
		t.Fatalf("Outcomes: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("Outcomes = %v, want 2", outcomes)
	}
	// Ordered by component name; the upsert result is current.
	if outcomes[0].Component != "commands" || outcomes[0].State != "installed" {
		t.Errorf("outcomes[0] = %+v", outcomes[0])
	}
}

func TestRecentBatchesOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	for _, kind := range []string{"install", "update", "uninstall"} {
		id, err := s.BeginBatch(ctx, kind)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.FinishBatch(ctx, id, true, ""); err != nil {
			t.Fatal(err)
		}
	}

	batches, err := s.RecentBatches(ctx, 2)
	if err != nil {
		t.Fatalf("RecentBatches: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("limit not applied: %d rows", len(batches))
	}
	if batches[0].Kind != "uninstall" || batches[1].Kind != "update" {
		t.Errorf("ordering = [%s %s], want newest first", batches[0].Kind, batches[1].Kind)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), FileName)

	s1, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	id, err := s1.BeginBatch(ctx, "install")
	if err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer s2.Close()
	batches, err := s2.RecentBatches(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 1 || batches[0].ID != id {
		t.Errorf("journal lost across reopen: %v", batches)
	}
}
