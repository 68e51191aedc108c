package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"alumnus/internal/consent/models"
	"alumnus/internal/platform/postgres"
	id "alumnus/pkg/domain"
	"alumnus/pkg/platform/sentinel"
	txcontext "alumnus/pkg/platform/tx"
)

// Postgres appends to consent_records. Rows are never updated or deleted.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Append(ctx context.Context, r *models.Record) error {
	var parent uuid.NullUUID
	if r.ParentProfileID != nil {
		parent = uuid.NullUUID{UUID: uuid.UUID(*r.ParentProfileID), Valid: true}
	}
	var reason sql.NullString
	if r.Reason != "" {
		reason = sql.NullString{String: r.Reason, Valid: true}
	}

	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO consent_records (id, child_profile_id, parent_profile_id, actor_account_id, action, reason, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID,
		uuid.UUID(r.ChildProfileID),
		parent,
		uuid.UUID(r.ActorAccountID),
		string(r.Action),
		reason,
		r.Timestamp,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return fmt.Errorf("consent record %s: %w", r.ID, sentinel.ErrConflict)
		}
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("consent record profile: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert consent record: %w", err)
	}
	return nil
}

func (s *Postgres) ListByChild(ctx context.Context, childProfileID id.ProfileID) ([]*models.Record, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT id, child_profile_id, parent_profile_id, actor_account_id, action, reason, recorded_at
		FROM consent_records
		WHERE child_profile_id = $1
		ORDER BY recorded_at, id`,
		uuid.UUID(childProfileID),
	)
	if err != nil {
		return nil, fmt.Errorf("query consent records: %w", err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		var (
			r      models.Record
			child  uuid.UUID
			parent uuid.NullUUID
			actor  uuid.UUID
			action string
			reason sql.NullString
		)
		if err := rows.Scan(&r.ID, &child, &parent, &actor, &action, &reason, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan consent record: %w", err)
		}
		r.ChildProfileID = id.ProfileID(child)
		if parent.Valid {
			p := id.ProfileID(parent.UUID)
			r.ParentProfileID = &p
		}
		r.ActorAccountID = id.AccountID(actor)
		r.Action = models.Action(action)
		r.Reason = reason.String
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consent records: %w", err)
	}
	return out, nil
}
