package accounts

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditIncreasesBalance(t *testing.T) {
	a := New(uuid.New())

	require.NoError(t, a.Credit(500))
	require.NoError(t, a.Credit(250))

	b := a.Balance()
	assert.Equal(t, int64(750), b.Balance)
	assert.Equal(t, int64(0), b.Locked)
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	a := New(uuid.New())

	assert.Error(t, a.Credit(0))
	assert.Error(t, a.Credit(-10))
	assert.Equal(t, int64(0), a.Balance().Balance)
}

func TestRequestWithdrawalLocksFunds(t *testing.T) {
	a := NewWithBalance(uuid.New(), 1000)

	w, err := a.RequestWithdrawal("addr-1", 300)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, w.Status)
	b := a.Balance()
	assert.Equal(t, int64(1000), b.Balance)
	assert.Equal(t, int64(300), b.Locked)
	assert.Equal(t, int64(700), b.Spendable())
}

func TestRequestWithdrawalInsufficientFunds(t *testing.T) {
	a := NewWithBalance(uuid.New(), 10)

	w, err := a.RequestWithdrawal("addr-1", 100)
	require.NoError(t, err)

	assert.Equal(t, StatusError, w.Status)
	assert.Equal(t, "You do not have enough balance to cover the withdrawal of amount 100", w.Message)

	b := a.Balance()
	assert.Equal(t, int64(10), b.Balance)
	assert.Equal(t, int64(0), b.Locked)

	// Terminal on admission: a later status event must not touch it.
	a.ApplyWithdrawalStatus(w.ID, StatusSuccess, "")
	got, ok := a.Withdrawal(w.ID)
	require.True(t, ok)
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, int64(10), a.Balance().Balance)
}

func TestRequestWithdrawalCountsLockedAsSpent(t *testing.T) {
	a := NewWithBalance(uuid.New(), 100)

	w1, err := a.RequestWithdrawal("addr-1", 60)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, w1.Status)

	// 40 spendable left; a second 60 must be rejected even though the
	// balance still reads 100.
	w2, err := a.RequestWithdrawal("addr-1", 60)
	require.NoError(t, err)
	assert.Equal(t, StatusError, w2.Status)
	assert.Equal(t, int64(60), a.Balance().Locked)
}

func TestApplyWithdrawalStatusSuccess(t *testing.T) {
	a := NewWithBalance(uuid.New(), 1000)
	w, err := a.RequestWithdrawal("addr-1", 400)
	require.NoError(t, err)

	a.ApplyWithdrawalStatus(w.ID, StatusSuccess, "")

	b := a.Balance()
	assert.Equal(t, int64(600), b.Balance)
	assert.Equal(t, int64(0), b.Locked)
	got, _ := a.Withdrawal(w.ID)
	assert.Equal(t, StatusSuccess, got.Status)
	assert.Empty(t, got.Message)
}

func TestApplyWithdrawalStatusErrorUnlocksWithoutDebit(t *testing.T) {
	a := NewWithBalance(uuid.New(), 1000)
	w, err := a.RequestWithdrawal("addr-1", 400)
	require.NoError(t, err)

	a.ApplyWithdrawalStatus(w.ID, StatusError, "external withdrawal failed")

	b := a.Balance()
	assert.Equal(t, int64(1000), b.Balance)
	assert.Equal(t, int64(0), b.Locked)
	got, _ := a.Withdrawal(w.ID)
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, "external withdrawal failed", got.Message)
}

func TestApplyWithdrawalStatusProcessingKeepsBalance(t *testing.T) {
	a := NewWithBalance(uuid.New(), 1000)
	w, err := a.RequestWithdrawal("addr-1", 400)
	require.NoError(t, err)

	a.ApplyWithdrawalStatus(w.ID, StatusProcessing, "")

	b := a.Balance()
	assert.Equal(t, int64(1000), b.Balance)
	assert.Equal(t, int64(400), b.Locked)
	got, _ := a.Withdrawal(w.ID)
	assert.Equal(t, StatusProcessing, got.Status)

	// PROCESSING is not terminal; completion still settles once.
	a.ApplyWithdrawalStatus(w.ID, StatusSuccess, "")
	assert.Equal(t, int64(600), a.Balance().Balance)
}

func TestApplyWithdrawalStatusTerminalIsIdempotent(t *testing.T) {
	a := NewWithBalance(uuid.New(), 1000)
	w, err := a.RequestWithdrawal("addr-1", 400)
	require.NoError(t, err)

	a.ApplyWithdrawalStatus(w.ID, StatusSuccess, "")
	a.ApplyWithdrawalStatus(w.ID, StatusSuccess, "")
	a.ApplyWithdrawalStatus(w.ID, StatusError, "late duplicate")

	b := a.Balance()
	assert.Equal(t, int64(600), b.Balance)
	assert.Equal(t, int64(0), b.Locked)
	got, _ := a.Withdrawal(w.ID)
	assert.Equal(t, StatusSuccess, got.Status)
}

func TestApplyWithdrawalStatusUnknownIDIsNoop(t *testing.T) {
	a := NewWithBalance(uuid.New(), 1000)

	a.ApplyWithdrawalStatus(uuid.New(), StatusSuccess, "")

	assert.Equal(t, int64(1000), a.Balance().Balance)
	assert.Empty(t, a.Withdrawals())
}

func TestWithdrawalsPreserveInsertionOrder(t *testing.T) {
	a := NewWithBalance(uuid.New(), 1000)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		w, err := a.RequestWithdrawal(fmt.Sprintf("addr-%d", i), 100)
		require.NoError(t, err)
		ids = append(ids, w.ID)
	}

	ledger := a.Withdrawals()
	require.Len(t, ledger, 5)
	for i, w := range ledger {
		assert.Equal(t, ids[i], w.ID)
	}
}

func TestLockedEqualsOutstandingWithdrawals(t *testing.T) {
	a := NewWithBalance(uuid.New(), 10000)

	check := func() {
		var outstanding int64
		for _, w := range a.Withdrawals() {
			if w.Status == StatusPending || w.Status == StatusProcessing {
				outstanding += w.Amount
			}
		}
		b := a.Balance()
		require.Equal(t, outstanding, b.Locked)
		require.GreaterOrEqual(t, b.Spendable(), int64(0))
	}

	var pending []uuid.UUID
	for i := 0; i < 20; i++ {
		w, err := a.RequestWithdrawal("addr", int64(100+i))
		require.NoError(t, err)
		check()
		if w.Status == StatusPending {
			pending = append(pending, w.ID)
		}
		if i%3 == 0 && len(pending) > 0 {
			a.ApplyWithdrawalStatus(pending[0], StatusSuccess, "")
			pending = pending[1:]
			check()
		}
		if i%5 == 0 && len(pending) > 0 {
			a.ApplyWithdrawalStatus(pending[0], StatusError, "failed")
			pending = pending[1:]
			check()
		}
	}
}

func TestAffordablePrefixLocksOnly(t *testing.T) {
	a := NewWithBalance(uuid.New(), 250)

	// Each individually affordable, but only the first two collectively.
	var statuses []WithdrawalStatus
	for i := 0; i < 5; i++ {
		w, err := a.RequestWithdrawal("addr", 100)
		require.NoError(t, err)
		statuses = append(statuses, w.Status)
	}

	assert.Equal(t, []WithdrawalStatus{
		StatusPending, StatusPending, StatusError, StatusError, StatusError,
	}, statuses)
	assert.Equal(t, int64(200), a.Balance().Locked)
}

// TestSnapshotReadsAreTearFree drives one writer through lock/unlock cycles
// while readers assert they only ever observe snapshots that existed at some
// instant. Run with -race.
func TestSnapshotReadsAreTearFree(t *testing.T) {
	a := NewWithBalance(uuid.New(), 1000)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				b := a.Balance()
				if b.Balance != 1000 {
					t.Errorf("torn balance read: %+v", b)
					return
				}
				if b.Locked != 0 && b.Locked != 50 {
					t.Errorf("torn locked read: %+v", b)
					return
				}
				_ = a.Withdrawals()
			}
		}()
	}

	for i := 0; i < 500; i++ {
		w, err := a.RequestWithdrawal("addr", 50)
		require.NoError(t, err)
		a.ApplyWithdrawalStatus(w.ID, StatusError, "rolled back")
	}
	close(stop)
	wg.Wait()
}
