package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"alumnus/internal/account/models"
	id "alumnus/pkg/domain"
	"alumnus/pkg/platform/sentinel"
	txcontext "alumnus/pkg/platform/tx"
)

// InMemory keeps accounts keyed by id with a unique email index.
type InMemory struct {
	gate     *txcontext.Gate
	mu       sync.RWMutex
	accounts map[id.AccountID]models.Account
	byEmail  map[string]id.AccountID
}

func NewInMemory() *InMemory {
	return &InMemory{
		accounts: make(map[id.AccountID]models.Account),
		byEmail:  make(map[string]id.AccountID),
	}
}

// JoinTx implements tx.Participant.
func (s *InMemory) JoinTx(g *txcontext.Gate) { s.gate = g }

func (s *InMemory) Create(ctx context.Context, a *models.Account) error {
	defer s.gate.Enter(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[a.Email]; taken {
		return fmt.Errorf("account email: %w", sentinel.ErrConflict)
	}
	if _, exists := s.accounts[a.ID]; exists {
		return fmt.Errorf("account %s: %w", a.ID, sentinel.ErrConflict)
	}
	accountID, address := a.ID, a.Email
	s.accounts[accountID] = *a
	s.byEmail[address] = accountID
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.accounts, accountID)
		delete(s.byEmail, address)
	})
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	defer s.gate.Enter(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, sentinel.ErrNotFound)
	}
	return &a, nil
}

// FindByEmail expects a normalized address.
func (s *InMemory) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	defer s.gate.Enter(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	accountID, ok := s.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("account email: %w", sentinel.ErrNotFound)
	}
	a := s.accounts[accountID]
	return &a, nil
}

func (s *InMemory) UpdateStatus(ctx context.Context, accountID id.AccountID, status models.Status, at time.Time) error {
	defer s.gate.Enter(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, sentinel.ErrNotFound)
	}
	prev := a
	a.ApplyStatus(status, at)
	s.accounts[accountID] = a
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.accounts[accountID] = prev
	})
	return nil
}
