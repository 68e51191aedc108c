package models

import (
	"strings"
	"time"

	id "alumnus/pkg/domain"
)

// Record is an alumni directory entry. The directory owns it; this service
// only reads it and fills in a missing year of birth.
type Record struct {
	ID          id.AlumniRecordID `json:"id"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	Email       string            `json:"email"`
	Batch       string            `json:"batch"`
	CenterName  string            `json:"center_name"`
	YearOfBirth *int              `json:"year_of_birth,omitempty"`
}

func (r *Record) HasYearOfBirth() bool {
	return r.YearOfBirth != nil
}

func (r *Record) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// BelongsTo reports whether the record was issued to email. Directory emails
// are compared case-insensitively.
func (r *Record) BelongsTo(email string) bool {
	return strings.EqualFold(strings.TrimSpace(r.Email), strings.TrimSpace(email))
}

// Claim is the advisory marker that an account has claimed a record. It is
// informational; the profile uniqueness constraint is what prevents duplicates.
type Claim struct {
	RecordID  id.AlumniRecordID
	AccountID id.AccountID
	ClaimedAt time.Time
}
