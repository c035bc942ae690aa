package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLedgerWritesHeaderOnceThenAppends(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLedger(dir, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer l.Close()

	if err := l.Record(AuditRecord{Tick: 0, Rank: 0, DepositedCharge: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Record(AuditRecord{Tick: 1, Rank: 0, DepositedCharge: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.Close()

	data, err := os.ReadFile(filepath.Join(dir, "audit.csv"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("audit.csv has %d lines, want 3 (header + 2 records)", len(lines))
	}
	if !strings.HasPrefix(lines[0], "tick,") {
		t.Fatalf("header = %q, want it to start with tick,", lines[0])
	}
}

func TestLedgerWithEmptyDirDoesNotWriteCSV(t *testing.T) {
	l, err := NewLedger("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Record(AuditRecord{Tick: 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Dir() != "" {
		t.Fatalf("Dir() = %q, want empty", l.Dir())
	}
}
