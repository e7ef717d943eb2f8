package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/network"
	"go.uber.org/zap"
)

const (
	opSchedulerNew = "sync.scheduler.new"
	opSchedulerRun = "sync.scheduler.run"

	defaultBackoff     = 30 * time.Second
	defaultMaxAttempts = 5
)

// WorkKind identifies one vertical's background reconciliation task.
// Each kind is a distinct, statically-known task type; there is no
// dispatch by name.
type WorkKind int

const (
	// WorkCustomerSync sweeps the customer-transaction ledger.
	WorkCustomerSync WorkKind = iota
	// WorkMonthBookSync sweeps the month-book ledger.
	WorkMonthBookSync
)

// String names the work kind for logs and work deduplication.
func (k WorkKind) String() string {
	switch k {
	case WorkCustomerSync:
		return "customer-sync"
	case WorkMonthBookSync:
		return "month-book-sync"
	}
	return "unknown"
}

// WorkScheduler is the facility the manager hands deferred work to.
type WorkScheduler interface {
	// Ensure queues exactly one run of the kind's worker. A kind that is
	// already queued or running is kept as-is, not duplicated.
	Ensure(kind WorkKind)
}

// SchedulerConfig describes the scheduler's collaborators and policy.
type SchedulerConfig struct {
	Network network.Monitor
	// Backoff is the base delay between retries; attempt n waits n times
	// this value (linear backoff).
	Backoff time.Duration
	// MaxAttempts caps worker invocations per Ensure before giving up.
	// Pending entries survive in the ledger for the next Ensure.
	MaxAttempts int
	Logger      *zap.Logger
}

// Scheduler runs registered workers under a network-connected
// precondition with linear backoff between retries. One goroutine per
// queued kind; re-queuing a kind already in flight is a no-op.
type Scheduler struct {
	network     network.Monitor
	backoff     time.Duration
	maxAttempts int
	logger      *zap.Logger

	baseCtx context.Context
	mu      sync.Mutex
	workers map[WorkKind]*Worker
	queued  map[WorkKind]bool
	runs    sync.WaitGroup
}

// NewScheduler constructs the scheduler. The context bounds every run it
// launches.
func NewScheduler(ctx context.Context, cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Network == nil {
		return nil, newSyncError(opSchedulerNew, "missing_network", errMissingNetwork)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		network:     cfg.Network,
		backoff:     backoff,
		maxAttempts: maxAttempts,
		logger:      logger,
		baseCtx:     ctx,
		workers:     make(map[WorkKind]*Worker),
		queued:      make(map[WorkKind]bool),
	}, nil
}

// Register binds a worker to its kind. Registration happens once during
// wiring, before any Ensure call.
func (s *Scheduler) Register(kind WorkKind, worker *Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[kind] = worker
}

// Ensure implements WorkScheduler.
func (s *Scheduler) Ensure(kind WorkKind) {
	s.mu.Lock()
	worker, ok := s.workers[kind]
	if !ok {
		s.mu.Unlock()
		s.logger.Error("no worker registered for kind",
			zap.String("operation", opSchedulerRun),
			zap.Stringer("kind", kind))
		return
	}
	if s.queued[kind] {
		s.mu.Unlock()
		return
	}
	s.queued[kind] = true
	s.mu.Unlock()

	s.runs.Add(1)
	go s.run(kind, worker)
}

// Wait blocks until every queued run has finished. Intended for tests
// and shutdown paths.
func (s *Scheduler) Wait() {
	s.runs.Wait()
}

func (s *Scheduler) run(kind WorkKind, worker *Worker) {
	defer s.runs.Done()
	defer func() {
		s.mu.Lock()
		delete(s.queued, kind)
		s.mu.Unlock()
	}()

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if !s.waitOnline() {
			return
		}

		result := worker.Run(s.baseCtx)
		if result == ResultDone {
			s.logger.Debug("sync work complete",
				zap.Stringer("kind", kind),
				zap.Int("attempt", attempt))
			return
		}

		s.logger.Info("sync work retrying",
			zap.Stringer("kind", kind),
			zap.Int("attempt", attempt))
		select {
		case <-s.baseCtx.Done():
			return
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}

	s.logger.Warn("sync work retry budget exhausted",
		zap.String("operation", opSchedulerRun),
		zap.Stringer("kind", kind),
		zap.Int("max_attempts", s.maxAttempts))
}

// waitOnline blocks until connectivity is available or the scheduler
// context ends. Returns false on cancellation.
func (s *Scheduler) waitOnline() bool {
	for {
		if s.network.Online() {
			return true
		}

		transition := make(chan bool, 1)
		cancel := s.network.NotifyOnce(func(online bool) {
			transition <- online
		})

		// The state may have flipped between the check and the subscription.
		if s.network.Online() {
			cancel()
			return true
		}

		select {
		case online := <-transition:
			if online {
				return true
			}
		case <-s.baseCtx.Done():
			cancel()
			return false
		}
	}
}
