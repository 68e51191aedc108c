package models

import (
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
)

// Action is what a ledger entry records.
type Action string

const (
	ActionGranted Action = "granted"
	ActionRevoked Action = "revoked"
)

func (a Action) String() string { return string(a) }

// MaxReasonLength bounds the free-text revocation reason.
const MaxReasonLength = 500

// ValidateReason bounds the reason by characters, not bytes.
func ValidateReason(reason string) error {
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return dErrors.New(dErrors.CodeValidation, "reason must be 500 characters or less")
	}
	return nil
}

// Record is one append-only parental consent ledger entry. IDs are ULIDs, so
// they sort in the order entries were written.
type Record struct {
	ID              string        `json:"id"`
	ChildProfileID  id.ProfileID  `json:"child_profile_id"`
	ParentProfileID *id.ProfileID `json:"parent_profile_id,omitempty"`
	ActorAccountID  id.AccountID  `json:"actor_account_id"`
	Action          Action        `json:"action"`
	Reason          string        `json:"reason,omitempty"`
	Timestamp       time.Time     `json:"timestamp"`
}

// NewRecord builds a ledger entry. entropy is the ULID randomness source; pass
// ulid.DefaultEntropy() outside tests.
func NewRecord(entropy io.Reader, action Action, child id.ProfileID, parent *id.ProfileID, actor id.AccountID, reason string, at time.Time) (*Record, error) {
	if action != ActionGranted && action != ActionRevoked {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown consent action")
	}
	if child.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "consent record requires a child profile")
	}
	reason = strings.TrimSpace(reason)
	if err := ValidateReason(reason); err != nil {
		return nil, err
	}
	if action == ActionGranted {
		reason = ""
	}

	entryID, err := ulid.New(ulid.Timestamp(at), entropy)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate consent record id")
	}
	return &Record{
		ID:              entryID.String(),
		ChildProfileID:  child,
		ParentProfileID: parent,
		ActorAccountID:  actor,
		Action:          action,
		Reason:          reason,
		Timestamp:       at,
	}, nil
}
