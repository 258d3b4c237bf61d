// Package scheduler implements the sharded single-writer execution engine.
//
// Every operation for a given account is routed to the same shard queue and
// executed by that shard's one worker goroutine, so per-account mutations are
// linearized by queue order and the Account aggregate needs no locks around
// its writers.
package scheduler

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Aidin1998/ledgerd/internal/accounts"
	"github.com/Aidin1998/ledgerd/pkg/metrics"
)

// ErrShutdown is delivered to the error handler of operations submitted
// after Shutdown.
var ErrShutdown = errors.New("scheduler is shut down")

// Operation mutates the live account it receives. It must not retain the
// account past its own execution.
type Operation func(*accounts.Account) error

// ErrorHandler receives the error of a failed operation on the shard
// worker's goroutine.
type ErrorHandler func(error)

type queuedOp struct {
	accountID uuid.UUID
	op        Operation
	onError   ErrorHandler
}

// Scheduler partitions accounts across a fixed set of serial shard workers.
type Scheduler struct {
	store  *accounts.Store
	shards []*opQueue
	done   chan struct{}
	logger *zap.Logger
}

// New creates the scheduler and starts one worker goroutine per shard.
func New(store *accounts.Store, shardCount int, logger *zap.Logger) (*Scheduler, error) {
	if shardCount <= 0 {
		return nil, fmt.Errorf("shard count must be positive, got %d", shardCount)
	}

	s := &Scheduler{
		store:  store,
		shards: make([]*opQueue, shardCount),
		done:   make(chan struct{}),
		logger: logger,
	}
	for i := 0; i < shardCount; i++ {
		s.shards[i] = newOpQueue()
		go s.runWorker(i)
	}
	return s, nil
}

// Submit enqueues the operation on the shard owning the account and returns
// immediately. The operation's outcome is reported through onError only;
// there is no synchronous result.
func (s *Scheduler) Submit(accountID uuid.UUID, op Operation, onError ErrorHandler) {
	shard := s.shardFor(accountID)
	item := queuedOp{accountID: accountID, op: op, onError: onError}
	if !s.shards[shard].push(item) {
		s.fail(item, ErrShutdown)
		return
	}
	metrics.ShardQueueDepth.WithLabelValues(strconv.Itoa(shard)).Inc()
}

// Lookup resolves an account synchronously.
func (s *Scheduler) Lookup(accountID uuid.UUID) (*accounts.Account, error) {
	acct, ok := s.store.Find(accountID)
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, accounts.ErrNotFound)
	}
	return acct, nil
}

// CreateAccount creates a new account synchronously, failing on a duplicate
// id.
func (s *Scheduler) CreateAccount(accountID uuid.UUID) (*accounts.Account, error) {
	return s.store.Save(accounts.New(accountID))
}

// Shutdown stops every shard worker after the item it is currently
// executing. Queued items are abandoned; their total is logged and returned.
func (s *Scheduler) Shutdown() int {
	abandoned := 0
	for i, q := range s.shards {
		n := q.close()
		if n > 0 {
			s.logger.Warn("abandoning queued operations",
				zap.Int("shard", i),
				zap.Int("count", n))
		}
		abandoned += n
	}
	for range s.shards {
		<-s.done
	}
	s.logger.Info("scheduler stopped", zap.Int("abandoned", abandoned))
	return abandoned
}

// shardFor deterministically assigns an account to a shard.
func (s *Scheduler) shardFor(accountID uuid.UUID) int {
	sum := sha256.Sum256(accountID[:])
	h := uint32(sum[0])<<24 | uint32(sum[1])<<16 | uint32(sum[2])<<8 | uint32(sum[3])
	return int(h % uint32(len(s.shards)))
}

func (s *Scheduler) runWorker(shard int) {
	defer func() { s.done <- struct{}{} }()

	q := s.shards[shard]
	depth := metrics.ShardQueueDepth.WithLabelValues(strconv.Itoa(shard))
	for {
		item, ok := q.pop()
		if !ok {
			return
		}
		depth.Dec()
		s.execute(item)
	}
}

// execute runs one operation against its live account. A failed or
// panicking operation is reported to its error handler and never stops the
// worker.
func (s *Scheduler) execute(item queuedOp) {
	defer func() {
		if r := recover(); r != nil {
			s.fail(item, fmt.Errorf("operation panicked: %v", r))
		}
	}()

	acct, ok := s.store.Find(item.accountID)
	if !ok {
		s.fail(item, fmt.Errorf("account %s: %w", item.accountID, accounts.ErrNotFound))
		return
	}
	if err := item.op(acct); err != nil {
		s.fail(item, err)
		return
	}
	metrics.OperationsProcessed.WithLabelValues("ok").Inc()
}

func (s *Scheduler) fail(item queuedOp, err error) {
	metrics.OperationsProcessed.WithLabelValues("error").Inc()
	if item.onError != nil {
		item.onError(err)
		return
	}
	s.logger.Error("account operation failed",
		zap.String("account_id", item.accountID.String()),
		zap.Error(err))
}
