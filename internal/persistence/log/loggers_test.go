package log

import (
	"testing"
	"time"

	"pixeltycoon/internal/sim/game"
)

func TestAuditLogger_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)

	now := time.Date(2026, 5, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return now }

	if err := l.WriteAudit(game.AuditEntry{TimeMs: 1, Action: "BUY_BUSINESS", Target: "0", OK: true, Coins: 5}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.WriteAudit(game.AuditEntry{TimeMs: 2, Action: "PRESTIGE"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := l.WriteAudit(game.AuditEntry{TimeMs: 3, Action: "RESET", OK: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := l.Files()
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files=%v want 2 hourly files", files)
	}

	first, err := ReadAll(files[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(first) != 2 || first[0].Action != "BUY_BUSINESS" || first[0].Target != "0" || !first[0].OK || first[0].Coins != 5 {
		t.Fatalf("first hour=%+v", first)
	}
	second, err := ReadAll(files[1])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(second) != 1 || second[0].Action != "RESET" {
		t.Fatalf("second hour=%+v", second)
	}
}
