package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRotatingCoreFlushesOnMaxSize(t *testing.T) {
	dir := t.TempDir()

	logger, archive, err := NewRotating(Config{Level: "debug", Format: "json", Output: "stdout"}, ArchiveConfig{
		Enabled:    true,
		ArchiveDir: dir,
		MaxSize:    1, // any single entry trips this
		Compress:   false,
	})
	if err != nil {
		t.Fatalf("NewRotating: %v", err)
	}
	if archive == nil {
		t.Fatal("expected non-nil archive")
	}

	logger.Info("first event", "collection", "authors")
	logger.Info("second event", "collection", "books")

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("expected at least one archive file to have been written")
	}
}

func TestRotatingCoreIgnoresDebugEntries(t *testing.T) {
	dir := t.TempDir()
	logger, archive, err := NewRotating(Config{Level: "debug", Format: "json", Output: "stdout"}, ArchiveConfig{
		Enabled:    true,
		ArchiveDir: dir,
		MaxAge:     time.Hour,
		MaxSize:    1 << 30,
	})
	if err != nil {
		t.Fatalf("NewRotating: %v", err)
	}

	logger.Debug("query executed", "result_count", 3)
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	entries, _, err := archive.QueryAllArchives(QueryOptions{})
	if err != nil {
		t.Fatalf("QueryAllArchives: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected debug-level entries to be excluded from the archive, got %d", len(entries))
	}
}

func TestRotatingCoreSyncFlushesBufferedEntries(t *testing.T) {
	dir := t.TempDir()
	logger, archive, err := NewRotating(Config{Level: "info", Format: "json", Output: "stdout"}, ArchiveConfig{
		Enabled:    true,
		ArchiveDir: dir,
		MaxAge:     time.Hour,
		MaxSize:    1 << 30, // large enough that Write alone never trips it
	})
	if err != nil {
		t.Fatalf("NewRotating: %v", err)
	}

	logger = logger.WithRequestID("req-1")
	logger.Info("query executed", "collection", "authors")

	if entries, _, _ := archive.QueryAllArchives(QueryOptions{}); len(entries) != 0 {
		t.Fatalf("expected nothing archived before Sync, got %d entries", len(entries))
	}

	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	entries, _, err := archive.QueryAllArchives(QueryOptions{})
	if err != nil {
		t.Fatalf("QueryAllArchives: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one archived entry, got %d", len(entries))
	}
	if entries[0].RequestID != "req-1" {
		t.Errorf("expected request_id=req-1, got %q", entries[0].RequestID)
	}
	if entries[0].Message != "query executed" {
		t.Errorf("expected message 'query executed', got %q", entries[0].Message)
	}
	if entries[0].Fields["collection"] != "authors" {
		t.Errorf("expected collection=authors field, got %v", entries[0].Fields["collection"])
	}
}

func TestNewRotatingWithoutArchivingBehavesLikeNew(t *testing.T) {
	logger, archive, err := NewRotating(Config{Level: "info", Format: "text", Output: "stdout"}, ArchiveConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewRotating: %v", err)
	}
	if archive != nil {
		t.Error("expected nil archive when archiving is disabled")
	}
	if logger == nil {
		t.Fatal("expected a usable logger even with archiving disabled")
	}
	logger.Info("no archive configured")
}

func TestEstimateBufferedBytesGrowsWithEntries(t *testing.T) {
	one := []LogEntry{{Message: "a", Fields: map[string]interface{}{"k": "v"}}}
	two := append(one, LogEntry{Message: "b", Fields: map[string]interface{}{"k": "v"}})

	if estimateBufferedBytes(two) <= estimateBufferedBytes(one) {
		t.Error("expected estimate to grow as entries accumulate")
	}
}

func TestParseArchiveFilenameRoundTrips(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewLogArchive(ArchiveConfig{Enabled: true, ArchiveDir: dir, Compress: false})
	if err != nil {
		t.Fatalf("NewLogArchive: %v", err)
	}

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	end := start.Add(time.Minute)
	file, err := archive.Archive([]LogEntry{
		{Message: "m1", Timestamp: start},
		{Message: "m2", Timestamp: end},
	})
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}

	gotStart, gotEnd := parseArchiveFilename(filepath.Base(file.Path))
	if !gotStart.Equal(start) || !gotEnd.Equal(end) {
		t.Errorf("parseArchiveFilename roundtrip mismatch: got (%v, %v), want (%v, %v)", gotStart, gotEnd, start, end)
	}
}
