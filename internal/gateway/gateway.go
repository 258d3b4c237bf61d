// Package gateway relays withdrawals to the external custody service and
// reconciles their terminal states back into the ledger.
//
// The gateway never touches an Account: resolutions are handed to the
// caller-supplied handler, which re-enters the system through the scheduler
// so the single-writer invariant holds even though resolutions originate on
// the reconciliation goroutine.
package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Aidin1998/ledgerd/internal/accounts"
	"github.com/Aidin1998/ledgerd/pkg/metrics"
)

// State is the external custody service's view of a withdrawal.
type State string

const (
	StateProcessing State = "PROCESSING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
)

// ExternalService is the unmodifiable third-party custody boundary.
type ExternalService interface {
	// RequestWithdrawal is idempotent by id and fails if the id was
	// previously used with a different address or amount.
	RequestWithdrawal(id uuid.UUID, address string, amount int64) error
	// RequestState fails for unknown ids.
	RequestState(id uuid.UUID) (State, error)
}

// Request identifies one withdrawal being relayed externally.
type Request struct {
	AccountID    uuid.UUID
	WithdrawalID uuid.UUID
	Address      string
	Amount       int64
}

// ResolutionHandler receives status updates for a submitted request. It is
// invoked at most once per request with a terminal status.
type ResolutionHandler func(req Request, status accounts.WithdrawalStatus, message string)

type outstandingRequest struct {
	req        Request
	onResolved ResolutionHandler
	// notifiedProcessing is touched only by the reconciliation goroutine.
	notifiedProcessing bool
}

// Gateway submits withdrawals fire-and-forget and polls the outstanding set
// until each reaches a terminal state.
type Gateway struct {
	svc      ExternalService
	interval time.Duration
	logger   *zap.Logger

	outstanding sync.Map // uuid.UUID -> *outstandingRequest

	stop chan struct{}
	done chan struct{}
}

// New creates the gateway and starts its reconciliation loop.
func New(svc ExternalService, interval time.Duration, logger *zap.Logger) *Gateway {
	g := &Gateway{
		svc:      svc,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go g.run()
	return g
}

// Submit relays the request to the external service. A submission failure is
// not retried: the handler is invoked exactly once with ERROR, synchronously,
// and the request is not registered for polling, so at most one terminal
// resolution is ever delivered per withdrawal id.
func (g *Gateway) Submit(req Request, onResolved ResolutionHandler) {
	if err := g.svc.RequestWithdrawal(req.WithdrawalID, req.Address, req.Amount); err != nil {
		g.logger.Warn("external withdrawal rejected",
			zap.String("withdrawal_id", req.WithdrawalID.String()),
			zap.String("account_id", req.AccountID.String()),
			zap.Error(err))
		metrics.WithdrawalsSubmitted.WithLabelValues("rejected").Inc()
		onResolved(req, accounts.StatusError, "external withdrawal rejected: "+err.Error())
		return
	}

	g.outstanding.Store(req.WithdrawalID, &outstandingRequest{req: req, onResolved: onResolved})
	metrics.WithdrawalsSubmitted.WithLabelValues("accepted").Inc()
	metrics.OutstandingWithdrawals.Inc()
}

// Shutdown stops the reconciliation loop after its current pass and logs how
// many requests remain outstanding. They are abandoned, not persisted.
func (g *Gateway) Shutdown() {
	close(g.stop)
	<-g.done

	remaining := 0
	g.outstanding.Range(func(_, _ any) bool {
		remaining++
		return true
	})
	if remaining > 0 {
		g.logger.Warn("abandoning outstanding external withdrawals",
			zap.Int("count", remaining))
	}
	g.logger.Info("withdrawal gateway stopped")
}

func (g *Gateway) run() {
	defer close(g.done)

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.reconcile()
		}
	}
}

// reconcile makes one pass over the outstanding set. Status query failures
// are transient: logged and retried on the next pass, never fatal to the
// loop.
func (g *Gateway) reconcile() {
	g.outstanding.Range(func(key, value any) bool {
		out := value.(*outstandingRequest)

		state, err := g.svc.RequestState(out.req.WithdrawalID)
		if err != nil {
			g.logger.Warn("withdrawal status check failed",
				zap.String("withdrawal_id", out.req.WithdrawalID.String()),
				zap.Error(err))
			return true
		}

		if state == StateProcessing {
			if !out.notifiedProcessing {
				out.notifiedProcessing = true
				out.onResolved(out.req, accounts.StatusProcessing, "")
			}
			return true
		}

		status, message := resolution(state)
		out.onResolved(out.req, status, message)
		g.outstanding.Delete(key)
		metrics.WithdrawalsResolved.WithLabelValues(string(status)).Inc()
		metrics.OutstandingWithdrawals.Dec()
		return true
	})
}

// resolution maps a terminal external state to the internal status.
func resolution(state State) (accounts.WithdrawalStatus, string) {
	if state == StateFailed {
		return accounts.StatusError, "external withdrawal failed"
	}
	return accounts.StatusSuccess, ""
}
