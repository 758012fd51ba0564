package compaction

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codedeck/server/internal/db"
)

func setupTestDB(t *testing.T) (*db.Database, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "codedeck-compaction-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	database, err := db.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create database: %v", err)
	}

	cleanup := func() {
		database.Close()
		os.RemoveAll(tmpDir)
	}

	return database, cleanup
}

func TestCompactTrimsCache(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	for _, code := range []string{"a", "b", "c", "d"} {
		if err := database.PutCachedResult(db.CacheKey("5", code, ""), "5", code); err != nil {
			t.Fatalf("Failed to seed cache: %v", err)
		}
	}

	service := New(database, Config{
		Interval:        time.Hour,
		MaxCacheEntries: 2,
		ActivityMaxAge:  time.Hour,
	})
	service.compact()

	size, err := database.GetCacheSize()
	if err != nil {
		t.Fatalf("GetCacheSize failed: %v", err)
	}
	if size != 2 {
		t.Errorf("Expected cache trimmed to 2 entries, got %d", size)
	}
}

func TestCompactExpiresStaleActivity(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	if err := database.RecordJoin("r1", 1); err != nil {
		t.Fatalf("Failed to seed activity: %v", err)
	}

	service := New(database, Config{
		Interval:        time.Hour,
		MaxCacheEntries: 100,
		ActivityMaxAge:  -time.Minute, // everything is stale
	})
	service.compact()

	activity, err := database.GetRoomActivity("r1")
	if err != nil {
		t.Fatalf("GetRoomActivity failed: %v", err)
	}
	if activity != nil {
		t.Error("Stale activity row should have been removed")
	}
}

func TestServiceStartStop(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	service := New(database, DefaultConfig())
	service.Start()
	service.Stop()
}
