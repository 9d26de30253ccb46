package controller

import (
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/utils/tests"
)

func TestPurgeExpiredIdempotencyHardDeletes(t *testing.T) {
	db, err := gorm.Open(tests.DummyDialector{}, &gorm.Config{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}

	cutoff := time.Now()
	stmt := purgeExpiredIdempotency(db, cutoff).Statement
	sql := stmt.SQL.String()
	if !strings.HasPrefix(sql, "DELETE") {
		t.Fatalf("expected a hard delete, got %q", sql)
	}
	if !strings.Contains(sql, "expires_at") {
		t.Fatalf("delete not bounded by expiry: %q", sql)
	}
	if len(stmt.Vars) != 1 || stmt.Vars[0] != cutoff {
		t.Fatalf("unexpected vars: %v", stmt.Vars)
	}
}
