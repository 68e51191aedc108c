package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"alumnus/internal/alumni/models"
	id "alumnus/pkg/domain"
	"alumnus/pkg/platform/sentinel"
	txcontext "alumnus/pkg/platform/tx"
)

// Postgres reads the directory's alumni_records table and keeps advisory
// claim markers in alumni_claims.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const recordColumns = `id, first_name, last_name, email, batch, center_name, year_of_birth`

func (s *Postgres) FindByEmail(ctx context.Context, email string) ([]models.Record, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT `+recordColumns+` FROM alumni_records WHERE lower(email) = lower($1) ORDER BY id`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("query alumni records by email: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alumni records: %w", err)
	}
	return out, nil
}

func (s *Postgres) FindByID(ctx context.Context, recordID id.AlumniRecordID) (*models.Record, error) {
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM alumni_records WHERE id = $1`,
		int64(recordID),
	)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("alumni record %d: %w", recordID, sentinel.ErrNotFound)
		}
		return nil, err
	}
	return r, nil
}

// BackfillYearOfBirth only writes when the column is still NULL, so a
// concurrent backfill or a directory-side value always wins.
func (s *Postgres) BackfillYearOfBirth(ctx context.Context, recordID id.AlumniRecordID, year int) error {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`UPDATE alumni_records SET year_of_birth = $2 WHERE id = $1 AND year_of_birth IS NULL`,
		int64(recordID), year,
	)
	if err != nil {
		return fmt.Errorf("backfill year of birth: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := s.FindByID(ctx, recordID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Postgres) MarkClaimed(ctx context.Context, claim models.Claim) error {
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO alumni_claims (alumni_record_id, account_id, claimed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (alumni_record_id, account_id) DO NOTHING`,
		int64(claim.RecordID), uuid.UUID(claim.AccountID), claim.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("mark alumni record claimed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		r      models.Record
		rawID  int64
		batch  sql.NullString
		center sql.NullString
		year   sql.NullInt32
	)
	if err := row.Scan(&rawID, &r.FirstName, &r.LastName, &r.Email, &batch, &center, &year); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan alumni record: %w", err)
	}
	r.ID = id.AlumniRecordID(rawID)
	r.Batch = batch.String
	r.CenterName = center.String
	if year.Valid {
		y := int(year.Int32)
		r.YearOfBirth = &y
	}
	return &r, nil
}
