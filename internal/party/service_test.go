package party

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestService(t *testing.T) *Service {
	t.Helper()
	databasePath := filepath.Join(t.TempDir(), "parties.db")
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Party{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	service, err := NewService(ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service
}

func TestEnsureExistsCreatesOnce(t *testing.T) {
	service := openTestService(t)
	ctx := context.Background()

	if err := service.EnsureExists(ctx, "party-1", "Asha", "owner-a"); err != nil {
		t.Fatalf("unexpected ensure error: %v", err)
	}
	// Re-ensuring with a different name must not overwrite the row.
	if err := service.EnsureExists(ctx, "party-1", "someone else", "owner-a"); err != nil {
		t.Fatalf("unexpected ensure error: %v", err)
	}

	row, err := service.Get(ctx, "party-1")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if row.DisplayName != "Asha" {
		t.Fatalf("expected original display name, got %q", row.DisplayName)
	}
}

func TestEnsureExistsDefaultsNameToID(t *testing.T) {
	service := openTestService(t)
	ctx := context.Background()

	if err := service.EnsureExists(ctx, "party-2", "  ", "owner-a"); err != nil {
		t.Fatalf("unexpected ensure error: %v", err)
	}
	row, err := service.Get(ctx, "party-2")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if row.DisplayName != "party-2" {
		t.Fatalf("expected id as fallback name, got %q", row.DisplayName)
	}
}

func TestEnsureExistsRejectsEmptyID(t *testing.T) {
	service := openTestService(t)

	if err := service.EnsureExists(context.Background(), "  ", "name", "owner-a"); !errors.Is(err, ErrInvalidPartyID) {
		t.Fatalf("expected ErrInvalidPartyID, got %v", err)
	}
}

func TestExists(t *testing.T) {
	service := openTestService(t)
	ctx := context.Background()

	found, err := service.Exists(ctx, "party-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected party to be absent")
	}

	if err := service.EnsureExists(ctx, "party-3", "", "owner-a"); err != nil {
		t.Fatalf("unexpected ensure error: %v", err)
	}
	found, err = service.Exists(ctx, "party-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected party to exist")
	}
}

func TestAdjustBalance(t *testing.T) {
	service := openTestService(t)
	ctx := context.Background()

	if err := service.EnsureExists(ctx, "party-4", "", "owner-a"); err != nil {
		t.Fatalf("unexpected ensure error: %v", err)
	}
	if err := service.AdjustBalance(ctx, "party-4", 700); err != nil {
		t.Fatalf("unexpected adjust error: %v", err)
	}
	if err := service.AdjustBalance(ctx, "party-4", -200); err != nil {
		t.Fatalf("unexpected adjust error: %v", err)
	}

	row, err := service.Get(ctx, "party-4")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if row.Balance != 500 {
		t.Fatalf("expected balance 500, got %d", row.Balance)
	}
}

func TestAdjustBalanceUnknownParty(t *testing.T) {
	service := openTestService(t)

	if err := service.AdjustBalance(context.Background(), "party-missing", 100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdjustBalanceConcurrentIncrements(t *testing.T) {
	service := openTestService(t)
	ctx := context.Background()

	if err := service.EnsureExists(ctx, "party-5", "", "owner-a"); err != nil {
		t.Fatalf("unexpected ensure error: %v", err)
	}

	const workers = 8
	const increments = 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < increments; j++ {
				if err := service.AdjustBalance(ctx, "party-5", 1); err != nil {
					t.Errorf("unexpected adjust error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	row, err := service.Get(ctx, "party-5")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if row.Balance != workers*increments {
		t.Fatalf("expected balance %d, got %d", workers*increments, row.Balance)
	}
}
