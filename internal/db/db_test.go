package db

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blinkenlights/convertster/internal/converter"
)

func openTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := Init(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database, dbPath
}

func TestDatabaseInit(t *testing.T) {
	_, dbPath := openTestDB(t)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("Database file was not created")
	}
}

func TestBatchLifecycle(t *testing.T) {
	database, _ := openTestDB(t)

	if err := database.CreateBatch("b-1", "jpg", 3); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	outcomes := []converter.Outcome{
		{Path: "/in/a.bmp", Output: "/in/a.jpg", Status: converter.StatusSucceeded},
		{Path: "/in/b.bmp", Output: "/in/b.jpg", Status: converter.StatusFailed, Err: errors.New("decode failed")},
		{Path: "/in/c.tif", Output: "/in/c.jpg", Status: converter.StatusSkipped},
	}
	for _, o := range outcomes {
		if err := database.InsertOutcome("b-1", o); err != nil {
			t.Fatalf("InsertOutcome: %v", err)
		}
	}
	summary := converter.Summary{Total: 3, Succeeded: 1, Failed: 1, Skipped: 1, Cancelled: true}
	if err := database.FinishBatch("b-1", summary); err != nil {
		t.Fatalf("FinishBatch: %v", err)
	}

	b, err := database.GetBatch("b-1")
	if err != nil || b == nil {
		t.Fatalf("GetBatch: %v %v", b, err)
	}
	if b.Succeeded != 1 || b.Failed != 1 || b.Skipped != 1 || !b.Cancelled || b.EndedAt == nil {
		t.Errorf("unexpected batch %+v", b)
	}

	recs, err := database.ListOutcomes("b-1")
	if err != nil {
		t.Fatalf("ListOutcomes: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(recs))
	}
	if recs[1].Status != "failed" || recs[1].ErrorMessage != "decode failed" {
		t.Errorf("unexpected failed outcome %+v", recs[1])
	}

	stats, err := database.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Batches != 1 || stats.TotalFiles != 3 || stats.SucceededCount != 1 || stats.FailedCount != 1 || stats.SkippedCount != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestFinishUnknownBatch(t *testing.T) {
	database, _ := openTestDB(t)
	if err := database.FinishBatch("nope", converter.Summary{}); err == nil {
		t.Fatal("expected error for unknown batch")
	}
	if b, err := database.GetBatch("nope"); err != nil || b != nil {
		t.Errorf("GetBatch(nope) = %v, %v", b, err)
	}
}

func TestListBatchesNewestFirst(t *testing.T) {
	database, _ := openTestDB(t)
	for _, id := range []string{"first", "second"} {
		if err := database.CreateBatch(id, "png", 1); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	batches, err := database.ListBatches(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 2 || batches[0].ID != "second" {
		t.Errorf("unexpected order: %+v", batches)
	}
}

func TestUpsertIndex(t *testing.T) {
	database, _ := openTestDB(t)
	path := "/watch/scan.tif"

	changed, err := database.UpsertIndex(path, "abc123")
	if err != nil || !changed {
		t.Fatalf("first upsert: changed=%v err=%v", changed, err)
	}
	rec, err := database.GetIndex(path)
	if err != nil || rec == nil || rec.Status != IndexPending {
		t.Fatalf("GetIndex: %+v %v", rec, err)
	}

	// Same content, not yet converted: still queued again.
	if changed, _ := database.UpsertIndex(path, "abc123"); !changed {
		t.Error("pending file should be reported as changed")
	}

	if err := database.SetIndexStatus(path, converter.StatusSucceeded.String()); err != nil {
		t.Fatal(err)
	}
	if changed, _ := database.UpsertIndex(path, "abc123"); changed {
		t.Error("converted file with same md5 should be unchanged")
	}
	if changed, _ := database.UpsertIndex(path, "def456"); !changed {
		t.Error("modified file should be reported as changed")
	}

	files, err := database.ListIndex(IndexPending, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].FileMD5 != "def456" {
		t.Errorf("unexpected index %+v", files)
	}
}
