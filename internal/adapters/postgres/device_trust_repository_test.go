package postgres

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newDryRunDB builds a gorm handle with the postgres dialect that renders
// SQL without touching a server, so statement shape can be asserted offline.
func newDryRunDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  "host=localhost user=identity dbname=identity sslmode=disable",
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return db
}

func TestTrustCapQueryLocksRowsWithoutAggregate(t *testing.T) {
	t.Parallel()

	db := newDryRunDB(t)

	var ids []uuid.UUID
	stmt := db.Model(&deviceTrustModel{}).
		Scopes(userTrustsLocked(uuid.New())).
		Pluck("device_trust_id", &ids).Statement

	sql := stmt.SQL.String()
	if !strings.Contains(sql, "FOR UPDATE") {
		t.Fatalf("cap check must lock the candidate rows, got %q", sql)
	}
	// Postgres rejects FOR UPDATE combined with aggregates (SQLSTATE 0A000),
	// so the statement must select rows and leave counting to the caller.
	if strings.Contains(strings.ToLower(sql), "count(") {
		t.Fatalf("cap check must not aggregate under a row lock, got %q", sql)
	}
	if !strings.Contains(sql, "ORDER BY created_at") {
		t.Fatalf("eviction relies on oldest-first ordering, got %q", sql)
	}
}

func TestTrustDeleteScopedToOwner(t *testing.T) {
	t.Parallel()

	db := newDryRunDB(t)

	stmt := db.Scopes(trustOwnedBy(uuid.New(), uuid.New())).
		Delete(&deviceTrustModel{}).Statement

	sql := stmt.SQL.String()
	if !strings.HasPrefix(sql, "DELETE") {
		t.Fatalf("expected delete statement, got %q", sql)
	}
	// Both predicates must be present so a foreign id matches zero rows and
	// maps to not-found instead of deleting another user's trust.
	if !strings.Contains(sql, "device_trust_id") || !strings.Contains(sql, "user_id") {
		t.Fatalf("delete must require both trust id and owner, got %q", sql)
	}
}

func TestTrustDeleteAllLocksUserRows(t *testing.T) {
	t.Parallel()

	db := newDryRunDB(t)

	var rows []deviceTrustModel
	stmt := db.Scopes(userTrustsLocked(uuid.New())).Find(&rows).Statement

	sql := stmt.SQL.String()
	if !strings.Contains(sql, "user_id") || !strings.Contains(sql, "FOR UPDATE") {
		t.Fatalf("bulk revoke must lock the user's rows before deleting, got %q", sql)
	}
}
