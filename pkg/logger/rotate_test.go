package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotateOptionsDefaults(t *testing.T) {
	opts := rotateOptions{}.withDefaults()
	if opts.maxSizeMB != defaultAuditSizeMB {
		t.Fatalf("unexpected size default %d", opts.maxSizeMB)
	}
	if opts.maxBackups != defaultAuditBackups {
		t.Fatalf("unexpected backup default %d", opts.maxBackups)
	}
	if opts.maxAgeDays != defaultAuditAgeDays {
		t.Fatalf("unexpected age default %d", opts.maxAgeDays)
	}
}

func TestRotatingWriterRotatesBySize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	writer, err := newRotatingWriter(path, rotateOptions{maxBackups: 2, maxAgeDays: 1})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	defer writer.Close()
	writer.maxSize = 64

	first := strings.Repeat("a", 48) + "\n"
	second := strings.Repeat("b", 48) + "\n"
	if _, err := writer.Write([]byte(first)); err != nil {
		t.Fatalf("write first: %v", err)
	}
	if _, err := writer.Write([]byte(second)); err != nil {
		t.Fatalf("write second: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	live, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read live file: %v", err)
	}
	if string(live) != second {
		t.Fatalf("live file should hold the latest chunk, got %q", live)
	}

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(backup) != first {
		t.Fatalf("backup should hold the rotated chunk, got %q", backup)
	}
}
