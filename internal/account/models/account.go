package models

import (
	"time"

	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended:
		return true
	}
	return false
}

// Account is the login identity. One account owns any number of profiles.
type Account struct {
	ID           id.AccountID `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Status       Status       `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewAccount builds a pending account. email must already be normalized.
func NewAccount(accountID id.AccountID, email, passwordHash string, now time.Time) (*Account, error) {
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account email is required")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account password hash is required")
	}
	return &Account{
		ID:           accountID,
		Email:        email,
		PasswordHash: passwordHash,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (a *Account) IsSuspended() bool { return a.Status == StatusSuspended }

// CanLogin rejects suspended accounts. Pending accounts may log in to claim
// their first profile.
func (a *Account) CanLogin() error {
	if a.IsSuspended() {
		return dErrors.New(dErrors.CodeInvariantViolation, "account is suspended")
	}
	return nil
}

// CanTransitionTo rejects leaving suspension through onboarding.
func (a *Account) CanTransitionTo(next Status) error {
	if !next.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown account status")
	}
	if a.IsSuspended() && next != StatusSuspended {
		return dErrors.New(dErrors.CodeInvariantViolation, "suspended accounts cannot be reactivated here")
	}
	return nil
}

func (a *Account) ApplyStatus(next Status, now time.Time) {
	a.Status = next
	a.UpdatedAt = now
}

// LoginResult is an account-scoped session. The caller picks a profile through
// the session switcher afterwards.
type LoginResult struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int      `json:"expires_in"`
	Account     *Account `json:"account"`
}
