package database

import (
	"path/filepath"
	"testing"

	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/ledger"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/record"
)

func TestOpenSQLiteCreatesSchema(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "lenden.db")

	db, err := OpenSQLite(databasePath, nil)
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	tables := []string{
		record.CustomerTransaction{}.TableName(),
		record.MonthBookTransaction{}.TableName(),
		ledger.CustomerStatusTable,
		ledger.MonthBookStatusTable,
		migrationRecord{}.TableName(),
	}
	for _, table := range tables {
		if !db.Migrator().HasTable(table) {
			testContext.Fatalf("expected table %s to exist", table)
		}
	}
}

func TestOpenSQLiteRequiresPath(testContext *testing.T) {
	if _, err := OpenSQLite("", nil); err == nil {
		testContext.Fatal("expected empty path to be rejected")
	}
}

func TestMigrationsRecordedOnce(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "lenden.db")

	db, err := OpenSQLite(databasePath, nil)
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	var recorded migrationRecord
	if err := db.Where("name = ?", migrationBackfillMadeByOwner).Take(&recorded).Error; err != nil {
		testContext.Fatalf("expected migration to be recorded: %v", err)
	}
	if recorded.AppliedAtSeconds == 0 {
		testContext.Fatal("expected a migration timestamp")
	}

	// A second pass over the same database must not re-apply.
	if err := applyMigrations(db, nil); err != nil {
		testContext.Fatalf("unexpected re-run error: %v", err)
	}
	var count int64
	if err := db.Model(&migrationRecord{}).Where("name = ?", migrationBackfillMadeByOwner).Count(&count).Error; err != nil {
		testContext.Fatalf("unexpected count error: %v", err)
	}
	if count != 1 {
		testContext.Fatalf("expected a single migration row, got %d", count)
	}
}

func TestBackfillMadeByOwner(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "lenden.db")

	db, err := OpenSQLite(databasePath, nil)
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	rows := []record.CustomerTransaction{
		{OwnerID: "owner-a", CustomerID: "customer-b", Kind: record.KindCredit, MadeByOwner: false},
		{OwnerID: "owner-a", CustomerID: "customer-b", Kind: record.KindDebit, MadeByOwner: false, RemoteID: "doc-1"},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			testContext.Fatalf("failed to seed row: %v", err)
		}
	}

	if err := backfillMadeByOwner(db); err != nil {
		testContext.Fatalf("unexpected backfill error: %v", err)
	}

	var localRow record.CustomerTransaction
	if err := db.Where("local_id = ?", rows[0].LocalID).Take(&localRow).Error; err != nil {
		testContext.Fatalf("failed to reload row: %v", err)
	}
	if !localRow.MadeByOwner {
		testContext.Fatal("expected a row without remote id to be backfilled")
	}

	var inboundRow record.CustomerTransaction
	if err := db.Where("local_id = ?", rows[1].LocalID).Take(&inboundRow).Error; err != nil {
		testContext.Fatalf("failed to reload row: %v", err)
	}
	if inboundRow.MadeByOwner {
		testContext.Fatal("expected an inbound row to keep its flag")
	}
}
