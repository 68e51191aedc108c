package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"alumnus/internal/agerules"
	"alumnus/internal/platform/postgres"
	"alumnus/internal/profile/models"
	id "alumnus/pkg/domain"
	"alumnus/pkg/platform/sentinel"
	txcontext "alumnus/pkg/platform/tx"
)

// ownershipConstraint is the unique (account_id, alumni_record_id) index that
// turns a duplicate claim into a conflict.
const ownershipConstraint = "user_profiles_account_record_key"

// Postgres persists profiles in user_profiles.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const profileColumns = `id, account_id, alumni_record_id, relationship, parent_profile_id,
	requires_consent, parent_consent_given, consent_granted_at, consent_expires_at,
	access_level, status, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, p *models.Profile) error {
	var parent uuid.NullUUID
	if p.ParentProfileID != nil {
		parent = uuid.NullUUID{UUID: uuid.UUID(*p.ParentProfileID), Valid: true}
	}
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO user_profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(p.ID),
		uuid.UUID(p.AccountID),
		int64(p.AlumniRecordID),
		string(p.Relationship),
		parent,
		p.RequiresConsent,
		p.ParentConsentGiven,
		nullTime(p.ConsentGrantedAt),
		nullTime(p.ConsentExpiresAt),
		string(p.AccessLevel),
		string(p.Status),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, ownershipConstraint) {
			return fmt.Errorf("profile for record %d: %w", p.AlumniRecordID, sentinel.ErrConflict)
		}
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("profile references: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// FindByID locks the row when called inside a transaction so a concurrent
// grant and revoke serialise on it.
func (s *Postgres) FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE id = $1`
	if txcontext.InTx(ctx) {
		query += ` FOR UPDATE`
	}
	p, err := scanProfile(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(profileID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", profileID, sentinel.ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

func (s *Postgres) Update(ctx context.Context, p *models.Profile) error {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE user_profiles
		SET parent_consent_given = $2,
			consent_granted_at = $3,
			consent_expires_at = $4,
			access_level = $5,
			status = $6,
			updated_at = $7
		WHERE id = $1`,
		uuid.UUID(p.ID),
		p.ParentConsentGiven,
		nullTime(p.ConsentGrantedAt),
		nullTime(p.ConsentExpiresAt),
		string(p.AccessLevel),
		string(p.Status),
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("profile %s: %w", p.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Postgres) ListByAccount(ctx context.Context, accountID id.AccountID) ([]*models.Profile, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT `+profileColumns+` FROM user_profiles
		WHERE account_id = $1
		ORDER BY created_at, relationship DESC, alumni_record_id`,
		uuid.UUID(accountID),
	)
	if err != nil {
		return nil, fmt.Errorf("query profiles by account: %w", err)
	}
	defer rows.Close()

	var out []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

func (s *Postgres) FindFirstParent(ctx context.Context, accountID id.AccountID) (*models.Profile, error) {
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+profileColumns+` FROM user_profiles
		WHERE account_id = $1 AND relationship = 'parent'
		ORDER BY created_at, alumni_record_id
		LIMIT 1`,
		uuid.UUID(accountID),
	)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("parent profile for account %s: %w", accountID, sentinel.ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

func (s *Postgres) ClaimedRecordIDs(ctx context.Context, accountID id.AccountID, recordIDs []id.AlumniRecordID) (map[id.AlumniRecordID]bool, error) {
	out := make(map[id.AlumniRecordID]bool, len(recordIDs))
	if len(recordIDs) == 0 {
		return out, nil
	}
	raw := make([]int64, len(recordIDs))
	for i, r := range recordIDs {
		raw[i] = int64(r)
	}

	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT alumni_record_id FROM user_profiles
		WHERE account_id = $1 AND alumni_record_id = ANY($2)`,
		uuid.UUID(accountID), pq.Array(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("query claimed records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var recordID int64
		if err := rows.Scan(&recordID); err != nil {
			return nil, fmt.Errorf("scan claimed record: %w", err)
		}
		out[id.AlumniRecordID(recordID)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed records: %w", err)
	}
	return out, nil
}

func (s *Postgres) CountByAccount(ctx context.Context, accountID id.AccountID) (int, error) {
	var n int
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT count(*) FROM user_profiles WHERE account_id = $1`,
		uuid.UUID(accountID),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p            models.Profile
		profileID    uuid.UUID
		accountID    uuid.UUID
		recordID     int64
		relationship string
		parent       uuid.NullUUID
		grantedAt    sql.NullTime
		expiresAt    sql.NullTime
		accessLevel  string
		status       string
	)
	err := row.Scan(
		&profileID, &accountID, &recordID, &relationship, &parent,
		&p.RequiresConsent, &p.ParentConsentGiven, &grantedAt, &expiresAt,
		&accessLevel, &status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	p.ID = id.ProfileID(profileID)
	p.AccountID = id.AccountID(accountID)
	p.AlumniRecordID = id.AlumniRecordID(recordID)
	p.Relationship = models.Relationship(relationship)
	if parent.Valid {
		parentID := id.ProfileID(parent.UUID)
		p.ParentProfileID = &parentID
	}
	if grantedAt.Valid {
		p.ConsentGrantedAt = &grantedAt.Time
	}
	if expiresAt.Valid {
		p.ConsentExpiresAt = &expiresAt.Time
	}
	p.AccessLevel = agerules.AccessLevel(accessLevel)
	p.Status = models.Status(status)
	return &p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
