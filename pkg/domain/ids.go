// Package domain holds typed identifiers shared across services.
//
// Construct ids from external input through the Parse* functions; they reject
// empty, malformed and nil values so services never see a zero id from a
// request.
package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	dErrors "alumnus/pkg/domain-errors"
)

// AccountID identifies a login account.
type AccountID uuid.UUID

// ProfileID identifies a claimed user profile.
type ProfileID uuid.UUID

// AlumniRecordID identifies a directory record owned by the alumni directory.
type AlumniRecordID int64

func NewAccountID() AccountID { return AccountID(uuid.New()) }
func NewProfileID() ProfileID { return ProfileID(uuid.New()) }

func (id AccountID) String() string { return uuid.UUID(id).String() }
func (id ProfileID) String() string { return uuid.UUID(id).String() }
func (id AlumniRecordID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func (id AccountID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ProfileID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id AccountID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id ProfileID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *AccountID) UnmarshalText(b []byte) error {
	parsed, err := ParseAccountID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ProfileID) UnmarshalText(b []byte) error {
	parsed, err := ParseProfileID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account id")
	return AccountID(u), err
}

func ParseProfileID(s string) (ProfileID, error) {
	u, err := parseUUID(s, "profile id")
	return ProfileID(u), err
}

// ParseAlumniRecordID accepts a positive decimal record id.
func ParseAlumniRecordID(s string) (AlumniRecordID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "alumni record id is required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid alumni record id")
	}
	return AlumniRecordID(n), nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
