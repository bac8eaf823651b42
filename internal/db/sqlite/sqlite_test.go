package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	d, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "nested", "docingest.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func TestOpen_AppliesMigrations(t *testing.T) {
	d := openTemp(t)
	ctx := context.Background()

	var count int
	if err := d.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name IN ('owners','documents')").Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 tables, got %d", count)
	}

	if err := d.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if err := d.WaitForReady(ctx, time.Second); err != nil {
		t.Errorf("WaitForReady: %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite")
	ctx := context.Background()

	first, err := Open(ctx, Config{Path: path})
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := first.ExecContext(ctx, "INSERT INTO owners (id, created_at) VALUES (1, ?)", FormatTime(time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}
	first.Close()

	second, err := Open(ctx, Config{Path: path})
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer second.Close()

	var n int
	if err := second.QueryRowContext(ctx, "SELECT COUNT(1) FROM owners").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected data to survive reopen, got %d rows", n)
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	d := openTemp(t)
	now := FormatTime(time.Now())
	_, err := d.ExecContext(context.Background(),
		`INSERT INTO documents (id, owner_id, storage_key, created_at, updated_at) VALUES ('d', 99, 'k', ?, ?)`, now, now)
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}

type codedErr int

func (c codedErr) Error() string { return "coded" }
func (c codedErr) Code() int     { return int(c) }

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked"), true},
		{errors.New("SQLITE_BUSY: try again"), true},
		{codedErr(5), true},
		{codedErr(261), true}, // SQLITE_BUSY_RECOVERY
		{codedErr(19), false},
		{errors.New("syntax error"), false},
	}
	for _, tt := range tests {
		if got := isBusy(tt.err); got != tt.want {
			t.Errorf("isBusy(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRetryOnBusy(t *testing.T) {
	calls := 0
	err := retryOnBusy(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("err=%v calls=%d", err, calls)
	}

	calls = 0
	permanent := errors.New("constraint failed")
	if err := retryOnBusy(context.Background(), func() error { calls++; return permanent }); !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("non-busy error should not retry: err=%v calls=%d", err, calls)
	}
}

func TestParseTime(t *testing.T) {
	now := time.Date(2026, 5, 6, 7, 8, 9, 123, time.UTC)
	if got := ParseTime(FormatTime(now)); !got.Equal(now) {
		t.Errorf("round trip = %v", got)
	}
	if got := ParseTime("2026-05-06 07:08:09"); got.IsZero() {
		t.Error("expected legacy format to parse")
	}
	if got := ParseTime("garbage"); !got.IsZero() {
		t.Errorf("expected zero time, got %v", got)
	}
}
