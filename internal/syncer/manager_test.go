package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/ledger"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/network"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/record"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/remote"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/session"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type stubScheduler struct {
	mu    sync.Mutex
	calls []WorkKind
}

func (s *stubScheduler) Ensure(kind WorkKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, kind)
}

func (s *stubScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type syncTestEnv struct {
	ledger    *ledger.Ledger
	records   *record.CustomerTransactionStore
	remote    *remote.MemoryStore
	monitor   *network.StatusMonitor
	scheduler *stubScheduler
	session   session.Session
}

func newSyncTestEnv(t *testing.T, online bool) *syncTestEnv {
	t.Helper()
	databasePath := filepath.Join(t.TempDir(), "sync.db")
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&record.CustomerTransaction{}); err != nil {
		t.Fatalf("failed to migrate records: %v", err)
	}

	statusLedger, err := ledger.New(db, ledger.CustomerStatusTable)
	if err != nil {
		t.Fatalf("failed to build ledger: %v", err)
	}
	if err := statusLedger.Migrate(); err != nil {
		t.Fatalf("failed to migrate ledger: %v", err)
	}
	records, err := record.NewCustomerTransactionStore(db)
	if err != nil {
		t.Fatalf("failed to build record store: %v", err)
	}
	userSession, err := session.New("owner-a")
	if err != nil {
		t.Fatalf("failed to build session: %v", err)
	}

	return &syncTestEnv{
		ledger:    statusLedger,
		records:   records,
		remote:    remote.NewMemoryStore(),
		monitor:   network.NewStatusMonitor(online),
		scheduler: &stubScheduler{},
		session:   userSession,
	}
}

func (env *syncTestEnv) newManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(context.Background(), ManagerConfig{
		Ledger:     env.ledger,
		Records:    env.records,
		Remote:     env.remote,
		Collection: record.CustomerCollection,
		Work:       WorkCustomerSync,
		Scheduler:  env.scheduler,
		Network:    env.monitor,
		Session:    env.session,
	})
	if err != nil {
		t.Fatalf("failed to build manager: %v", err)
	}
	return manager
}

func (env *syncTestEnv) insertRecord(t *testing.T) int64 {
	t.Helper()
	tx := &record.CustomerTransaction{
		OwnerID:          "owner-a",
		CustomerID:       "customer-b",
		Amount:           1200,
		Description:      "lunch",
		Kind:             record.KindCredit,
		CreatedAtSeconds: 1700000000,
		MadeByOwner:      true,
	}
	if err := env.records.Insert(context.Background(), tx); err != nil {
		t.Fatalf("failed to insert record: %v", err)
	}
	return tx.LocalID
}

// insertUploadedRecord seeds a record that already lives remotely, with
// its remote id cached and its ledger entry in the uploaded state.
func (env *syncTestEnv) insertUploadedRecord(t *testing.T) (int64, string) {
	t.Helper()
	ctx := context.Background()
	localID := env.insertRecord(t)
	view, err := env.records.View(ctx, localID)
	if err != nil {
		t.Fatalf("failed to load view: %v", err)
	}
	remoteID, err := env.remote.Add(ctx, record.CustomerCollection, view.Fields)
	if err != nil {
		t.Fatalf("failed to seed remote document: %v", err)
	}
	if err := env.records.SetRemoteID(ctx, localID, remoteID); err != nil {
		t.Fatalf("failed to cache remote id: %v", err)
	}
	entry := ledger.Entry{RecordID: localID, State: ledger.StateUploaded, Uploaded: true}
	if err := env.ledger.Upsert(ctx, entry); err != nil {
		t.Fatalf("failed to seed ledger entry: %v", err)
	}
	return localID, remoteID
}

func (env *syncTestEnv) ledgerEntry(t *testing.T, localID int64) (ledger.Entry, bool) {
	t.Helper()
	entry, found, err := env.ledger.Get(context.Background(), localID)
	if err != nil {
		t.Fatalf("failed to read ledger: %v", err)
	}
	return entry, found
}

func TestEnqueueUploadOnlineDeliversImmediately(t *testing.T) {
	env := newSyncTestEnv(t, true)
	manager := env.newManager(t)
	defer manager.Close()

	localID := env.insertRecord(t)
	manager.EnqueueUpload(localID)
	manager.Wait()

	if env.remote.Count(record.CustomerCollection) != 1 {
		t.Fatalf("expected one remote document, got %d", env.remote.Count(record.CustomerCollection))
	}
	entry, found := env.ledgerEntry(t, localID)
	if !found || entry.State != ledger.StateUploaded || !entry.Uploaded {
		t.Fatalf("expected uploaded ledger entry, got %+v found=%v", entry, found)
	}
	stored, err := env.records.Get(context.Background(), localID)
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	if stored.RemoteID == "" {
		t.Fatal("expected remote id to be cached on the record")
	}
	if env.scheduler.count() != 0 {
		t.Fatalf("expected no worker scheduling, got %d", env.scheduler.count())
	}
}

func TestEnqueueUploadOfflineDefersToWorker(t *testing.T) {
	env := newSyncTestEnv(t, false)
	manager := env.newManager(t)
	defer manager.Close()

	localID := env.insertRecord(t)
	manager.EnqueueUpload(localID)
	manager.Wait()

	if env.remote.AddCalls() != 0 {
		t.Fatalf("expected no remote attempt while offline, got %d", env.remote.AddCalls())
	}
	entry, found := env.ledgerEntry(t, localID)
	if !found || entry.State != ledger.StatePendingUpload || entry.Uploaded {
		t.Fatalf("expected pending upload entry, got %+v found=%v", entry, found)
	}
	if env.scheduler.count() != 1 {
		t.Fatalf("expected one worker scheduling, got %d", env.scheduler.count())
	}
}

func TestEnqueueUploadRemoteFailureKeepsPendingState(t *testing.T) {
	env := newSyncTestEnv(t, true)
	manager := env.newManager(t)
	defer manager.Close()

	env.remote.FailNext(remote.OpAdd, errors.New("remote down"))
	localID := env.insertRecord(t)
	manager.EnqueueUpload(localID)
	manager.Wait()

	entry, found := env.ledgerEntry(t, localID)
	if !found || entry.State != ledger.StatePendingUpload {
		t.Fatalf("expected pending state to survive failure, got %+v found=%v", entry, found)
	}
	if env.scheduler.count() != 1 {
		t.Fatalf("expected worker scheduling after failure, got %d", env.scheduler.count())
	}
}

func TestEnqueueUpdateBeforeUploadCarriesLatestValues(t *testing.T) {
	env := newSyncTestEnv(t, true)
	manager := env.newManager(t)
	defer manager.Close()

	ctx := context.Background()
	localID := env.insertRecord(t)
	entry := ledger.Entry{RecordID: localID, State: ledger.StatePendingUpload, Uploaded: false}
	if err := env.ledger.Upsert(ctx, entry); err != nil {
		t.Fatalf("failed to seed ledger entry: %v", err)
	}
	if err := env.records.ApplyEdit(ctx, localID, 4400, "edited offline", record.KindDebit, 1700000100); err != nil {
		t.Fatalf("failed to edit record: %v", err)
	}

	manager.EnqueueUpdate(localID)
	manager.Wait()

	if env.remote.AddCalls() != 1 || env.remote.UpdateCalls() != 0 {
		t.Fatalf("expected a single upload and no update, got add=%d update=%d",
			env.remote.AddCalls(), env.remote.UpdateCalls())
	}
	stored, err := env.records.Get(ctx, localID)
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	doc, ok := env.remote.Document(record.CustomerCollection, stored.RemoteID)
	if !ok {
		t.Fatal("expected uploaded document")
	}
	if doc.Fields[record.FieldAmount] != int64(4400) {
		t.Fatalf("expected the edited amount to reach the remote, got %v", doc.Fields[record.FieldAmount])
	}
	postEntry, _ := env.ledgerEntry(t, localID)
	if postEntry.State != ledger.StateUploaded {
		t.Fatalf("expected uploaded state, got %s", postEntry.State)
	}
}

func TestEnqueueUpdateWithoutLedgerEntryUploads(t *testing.T) {
	env := newSyncTestEnv(t, true)
	manager := env.newManager(t)
	defer manager.Close()

	localID := env.insertRecord(t)
	manager.EnqueueUpdate(localID)
	manager.Wait()

	if env.remote.AddCalls() != 1 {
		t.Fatalf("expected a fresh upload, got %d add calls", env.remote.AddCalls())
	}
	entry, found := env.ledgerEntry(t, localID)
	if !found || entry.State != ledger.StateUploaded {
		t.Fatalf("expected uploaded entry, got %+v found=%v", entry, found)
	}
}

func TestEnqueueUpdateAfterUploadSendsDiff(t *testing.T) {
	env := newSyncTestEnv(t, true)
	manager := env.newManager(t)
	defer manager.Close()

	ctx := context.Background()
	localID, remoteID := env.insertUploadedRecord(t)
	if err := env.records.ApplyEdit(ctx, localID, 999, "corrected", record.KindDebit, 1700000200); err != nil {
		t.Fatalf("failed to edit record: %v", err)
	}

	manager.EnqueueUpdate(localID)
	manager.Wait()

	if env.remote.UpdateCalls() != 1 {
		t.Fatalf("expected one remote update, got %d", env.remote.UpdateCalls())
	}
	doc, ok := env.remote.Document(record.CustomerCollection, remoteID)
	if !ok {
		t.Fatal("expected remote document to survive")
	}
	if doc.Fields[record.FieldAmount] != int64(999) || doc.Fields[record.FieldEdited] != true {
		t.Fatalf("expected edited fields on the remote, got %v", doc.Fields)
	}
	entry, _ := env.ledgerEntry(t, localID)
	if entry.State != ledger.StateUploaded || !entry.Uploaded {
		t.Fatalf("expected uploaded entry, got %+v", entry)
	}
}

func TestEnqueueUpdateIgnoredWhilePendingDelete(t *testing.T) {
	env := newSyncTestEnv(t, true)
	manager := env.newManager(t)
	defer manager.Close()

	ctx := context.Background()
	localID := env.insertRecord(t)
	entry := ledger.Entry{RecordID: localID, State: ledger.StatePendingDelete, Uploaded: true}
	if err := env.ledger.Upsert(ctx, entry); err != nil {
		t.Fatalf("failed to seed ledger entry: %v", err)
	}

	manager.EnqueueUpdate(localID)
	manager.Wait()

	if env.remote.AddCalls() != 0 || env.remote.UpdateCalls() != 0 {
		t.Fatal("expected no remote traffic for a record awaiting deletion")
	}
	post, _ := env.ledgerEntry(t, localID)
	if post.State != ledger.StatePendingDelete {
		t.Fatalf("expected delete intent to survive, got %s", post.State)
	}
}

func TestEnqueueDeleteBeforeUploadDropsLocally(t *testing.T) {
	env := newSyncTestEnv(t, true)
	manager := env.newManager(t)
	defer manager.Close()

	ctx := context.Background()
	localID := env.insertRecord(t)
	entry := ledger.Entry{RecordID: localID, State: ledger.StatePendingUpload, Uploaded: false}
	if err := env.ledger.Upsert(ctx, entry); err != nil {
		t.Fatalf("failed to seed ledger entry: %v", err)
	}

	manager.EnqueueDelete(localID)
	manager.Wait()

	if env.remote.DeleteCalls() != 0 {
		t.Fatalf("expected no remote delete, got %d", env.remote.DeleteCalls())
	}
	if _, found := env.ledgerEntry(t, localID); found {
		t.Fatal("expected ledger entry to be dropped")
	}
	if _, err := env.records.Get(ctx, localID); !errors.Is(err, record.ErrNotFound) {
		t.Fatalf("expected local row to be dropped, got %v", err)
	}
	if env.scheduler.count() != 0 {
		t.Fatalf("expected no worker scheduling, got %d", env.scheduler.count())
	}
}

func TestEnqueueDeleteAfterUploadRemovesEverywhere(t *testing.T) {
	env := newSyncTestEnv(t, true)
	manager := env.newManager(t)
	defer manager.Close()

	localID, remoteID := env.insertUploadedRecord(t)
	manager.EnqueueDelete(localID)
	manager.Wait()

	if _, ok := env.remote.Document(record.CustomerCollection, remoteID); ok {
		t.Fatal("expected remote document to be deleted")
	}
	if _, found := env.ledgerEntry(t, localID); found {
		t.Fatal("expected ledger entry to be dropped")
	}
	if _, err := env.records.Get(context.Background(), localID); !errors.Is(err, record.ErrNotFound) {
		t.Fatalf("expected local row to be dropped, got %v", err)
	}
}

func TestEnqueueDeleteOfflineMarksPending(t *testing.T) {
	env := newSyncTestEnv(t, false)
	manager := env.newManager(t)
	defer manager.Close()

	localID, _ := env.insertUploadedRecord(t)
	manager.EnqueueDelete(localID)
	manager.Wait()

	entry, found := env.ledgerEntry(t, localID)
	if !found || entry.State != ledger.StatePendingDelete || !entry.Uploaded {
		t.Fatalf("expected pending delete entry, got %+v found=%v", entry, found)
	}
	if env.remote.DeleteCalls() != 0 {
		t.Fatalf("expected no remote attempt while offline, got %d", env.remote.DeleteCalls())
	}
	if env.scheduler.count() != 1 {
		t.Fatalf("expected one worker scheduling, got %d", env.scheduler.count())
	}
}

func TestNetworkRegainedSchedulesPendingWork(t *testing.T) {
	env := newSyncTestEnv(t, false)
	manager := env.newManager(t)
	defer manager.Close()

	entry := ledger.Entry{RecordID: 1, State: ledger.StatePendingUpload, Uploaded: false}
	if err := env.ledger.Upsert(context.Background(), entry); err != nil {
		t.Fatalf("failed to seed ledger entry: %v", err)
	}

	env.monitor.SetOnline(true)
	manager.Wait()

	if env.scheduler.count() != 1 {
		t.Fatalf("expected one worker scheduling on reconnect, got %d", env.scheduler.count())
	}
}

func TestNetworkRegainedWithoutPendingStaysIdle(t *testing.T) {
	env := newSyncTestEnv(t, false)
	manager := env.newManager(t)
	defer manager.Close()

	env.monitor.SetOnline(true)
	manager.Wait()

	if env.scheduler.count() != 0 {
		t.Fatalf("expected no scheduling without pending work, got %d", env.scheduler.count())
	}
}

func TestNewManagerValidatesConfig(t *testing.T) {
	env := newSyncTestEnv(t, true)

	_, err := NewManager(context.Background(), ManagerConfig{
		Records:    env.records,
		Remote:     env.remote,
		Collection: record.CustomerCollection,
		Scheduler:  env.scheduler,
		Network:    env.monitor,
	})
	if err == nil {
		t.Fatal("expected missing ledger to be rejected")
	}
	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("expected a SyncError, got %T", err)
	}
}
