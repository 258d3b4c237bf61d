// Package accounts holds the in-memory account aggregate and its store.
//
// An Account is not safe for concurrent writers. Every mutation must go
// through the scheduler, which routes all operations for a given account to
// a single shard worker. Reads are safe from any goroutine at any time.
package accounts

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// WithdrawalStatus is the internal lifecycle state of a withdrawal.
type WithdrawalStatus string

const (
	StatusPending    WithdrawalStatus = "PENDING"
	StatusProcessing WithdrawalStatus = "PROCESSING"
	StatusError      WithdrawalStatus = "ERROR"
	StatusSuccess    WithdrawalStatus = "SUCCESS"
)

// Terminal reports whether the status is final. Terminal withdrawals are
// frozen; further status updates are no-ops.
func (s WithdrawalStatus) Terminal() bool {
	return s == StatusError || s == StatusSuccess
}

// Balance is the immutable two-field balance snapshot. Locked equals the sum
// of amounts of withdrawals currently PENDING or PROCESSING; Balance-Locked
// is the spendable amount. The pair is always read and replaced as one unit.
type Balance struct {
	Balance int64 `json:"balance"`
	Locked  int64 `json:"locked_balance"`
}

// Spendable returns the amount not reserved for in-flight withdrawals.
func (b Balance) Spendable() int64 {
	return b.Balance - b.Locked
}

// Withdrawal is one entry of an account's withdrawal ledger.
type Withdrawal struct {
	ID      uuid.UUID        `json:"withdrawal_id"`
	Address string           `json:"address"`
	Amount  int64            `json:"amount"`
	Status  WithdrawalStatus `json:"status"`
	Message string           `json:"message,omitempty"`
}

// Account is the in-memory aggregate for one customer account.
//
// The balance snapshot lives behind an atomic pointer so a reader racing the
// shard worker sees either the pre- or post-mutation pair, never a mixture.
// The withdrawal ledger keeps insertion order; it is guarded by an RWMutex
// that the single writer never contends on.
type Account struct {
	id      uuid.UUID
	balance atomic.Pointer[Balance]

	mu          sync.RWMutex
	withdrawals map[uuid.UUID]*Withdrawal
	order       []uuid.UUID
}

// New creates an account with a zero balance.
func New(id uuid.UUID) *Account {
	return NewWithBalance(id, 0)
}

// NewWithBalance creates an account with an initial balance.
func NewWithBalance(id uuid.UUID, initial int64) *Account {
	a := &Account{
		id:          id,
		withdrawals: make(map[uuid.UUID]*Withdrawal),
	}
	a.balance.Store(&Balance{Balance: initial})
	return a
}

// ID returns the account identifier.
func (a *Account) ID() uuid.UUID {
	return a.id
}

// Balance returns the current snapshot. Safe to call from any goroutine.
func (a *Account) Balance() Balance {
	return *a.balance.Load()
}

// Credit adds funds to the account. Shard-worker only.
func (a *Account) Credit(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	cur := a.balance.Load()
	a.swap(cur, Balance{Balance: cur.Balance + amount, Locked: cur.Locked})
	return nil
}

// RequestWithdrawal records a withdrawal and, if the spendable balance covers
// it, locks the amount. An unaffordable request settles immediately as a
// terminal ERROR entry with no lock taken; the caller still receives the
// record so rejection is observable through the ledger rather than as a call
// failure. Shard-worker only.
func (a *Account) RequestWithdrawal(address string, amount int64) (Withdrawal, error) {
	if amount <= 0 {
		return Withdrawal{}, fmt.Errorf("withdrawal amount must be positive, got %d", amount)
	}
	if address == "" {
		return Withdrawal{}, fmt.Errorf("withdrawal address must not be empty")
	}

	id := a.insertPending(address, amount)

	cur := a.balance.Load()
	if cur.Spendable() < amount {
		msg := fmt.Sprintf("You do not have enough balance to cover the withdrawal of amount %d", amount)
		return a.setStatus(id, StatusError, msg), nil
	}

	a.swap(cur, Balance{Balance: cur.Balance, Locked: cur.Locked + amount})
	return a.get(id), nil
}

// ApplyWithdrawalStatus applies an externally observed status to a
// withdrawal. Unknown ids and already-terminal entries are ignored, which
// makes duplicate or delayed reconciliation events harmless. Shard-worker
// only.
func (a *Account) ApplyWithdrawalStatus(id uuid.UUID, status WithdrawalStatus, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	w, ok := a.withdrawals[id]
	if !ok || w.Status.Terminal() {
		return
	}

	cur := a.balance.Load()
	switch status {
	case StatusSuccess:
		a.swap(cur, Balance{Balance: cur.Balance - w.Amount, Locked: cur.Locked - w.Amount})
		message = ""
	case StatusError:
		// Funds are unlocked but not debited.
		a.swap(cur, Balance{Balance: cur.Balance, Locked: cur.Locked - w.Amount})
	}

	w.Status = status
	w.Message = message
}

// Withdrawals returns a copy of the ledger in insertion order. Safe to call
// from any goroutine.
func (a *Account) Withdrawals() []Withdrawal {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Withdrawal, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, *a.withdrawals[id])
	}
	return out
}

// Withdrawal returns a copy of one ledger entry.
func (a *Account) Withdrawal(id uuid.UUID) (Withdrawal, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	w, ok := a.withdrawals[id]
	if !ok {
		return Withdrawal{}, false
	}
	return *w, true
}

// swap replaces the balance snapshot. Only one goroutine ever mutates an
// account, so the CAS cannot fail; its result is deliberately ignored.
func (a *Account) swap(cur *Balance, next Balance) {
	a.balance.CompareAndSwap(cur, &next)
}

// insertPending adds a fresh PENDING entry, retrying id generation on the
// extreme edge case of a uuid collision.
func (a *Account) insertPending(address string, amount int64) uuid.UUID {
	a.mu.Lock()
	defer a.mu.Unlock()

	var id uuid.UUID
	for {
		id = uuid.New()
		if _, exists := a.withdrawals[id]; !exists {
			break
		}
	}
	a.withdrawals[id] = &Withdrawal{
		ID:      id,
		Address: address,
		Amount:  amount,
		Status:  StatusPending,
	}
	a.order = append(a.order, id)
	return id
}

func (a *Account) setStatus(id uuid.UUID, status WithdrawalStatus, message string) Withdrawal {
	a.mu.Lock()
	defer a.mu.Unlock()

	w := a.withdrawals[id]
	w.Status = status
	w.Message = message
	return *w
}

func (a *Account) get(id uuid.UUID) Withdrawal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return *a.withdrawals[id]
}
