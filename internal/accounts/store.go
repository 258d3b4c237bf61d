package accounts

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when an account id is unknown.
	ErrNotFound = errors.New("account not found")
	// ErrConflict is returned when creating an account whose id already exists.
	ErrConflict = errors.New("account already exists")
)

// Store is the keyed container of all accounts. Creation is create-once;
// accounts are never deleted. Concurrent get/insert-if-absent is safe from
// any goroutine.
type Store struct {
	accounts sync.Map // uuid.UUID -> *Account
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Save inserts the account, failing if its id is already taken. The existing
// account is left untouched on conflict.
func (s *Store) Save(a *Account) (*Account, error) {
	if _, loaded := s.accounts.LoadOrStore(a.ID(), a); loaded {
		return nil, fmt.Errorf("account %s: %w", a.ID(), ErrConflict)
	}
	return a, nil
}

// Find returns the account for the given id.
func (s *Store) Find(id uuid.UUID) (*Account, bool) {
	v, ok := s.accounts.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Account), true
}
