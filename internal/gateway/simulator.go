package gateway

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

type simulatedRequest struct {
	address   string
	amount    int64
	resolveAt time.Time
	outcome   State
}

// Simulator is an in-process stand-in for the external custody service.
// Each accepted request resolves to COMPLETED or FAILED at a random moment
// between the configured min and max delays. It enforces the collaborator
// contract: requests are idempotent by id, parameter mismatches and unknown
// ids are errors.
type Simulator struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*simulatedRequest
	minDelay time.Duration
	maxDelay time.Duration
}

// NewSimulator creates a simulator resolving requests within [minDelay, maxDelay].
func NewSimulator(minDelay, maxDelay time.Duration) *Simulator {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Simulator{
		requests: make(map[uuid.UUID]*simulatedRequest),
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

// RequestWithdrawal accepts a withdrawal for asynchronous resolution.
func (s *Simulator) RequestWithdrawal(id uuid.UUID, address string, amount int64) error {
	if address == "" {
		return fmt.Errorf("withdrawal %s: address must not be empty", id)
	}
	if amount <= 0 {
		return fmt.Errorf("withdrawal %s: amount must be positive, got %d", id, amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.requests[id]; ok {
		if existing.address != address || existing.amount != amount {
			return fmt.Errorf("withdrawal %s already requested with different parameters", id)
		}
		return nil
	}

	delay := s.minDelay
	if spread := s.maxDelay - s.minDelay; spread > 0 {
		delay += time.Duration(rand.Int63n(int64(spread) + 1))
	}
	outcome := StateCompleted
	if rand.Intn(2) == 0 {
		outcome = StateFailed
	}
	s.requests[id] = &simulatedRequest{
		address:   address,
		amount:    amount,
		resolveAt: time.Now().Add(delay),
		outcome:   outcome,
	}
	return nil
}

// RequestState returns the current state of a withdrawal.
func (s *Simulator) RequestState(id uuid.UUID) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return "", fmt.Errorf("unknown withdrawal %s", id)
	}
	if time.Now().Before(r.resolveAt) {
		return StateProcessing, nil
	}
	return r.outcome, nil
}
