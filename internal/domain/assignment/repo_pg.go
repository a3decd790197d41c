package assignment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caregrid/caregrid/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct {
	pool *pgxpool.Pool
}

// NewRepoPG creates a Postgres-backed assignment repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if conn := db.ConnFromContext(ctx); conn != nil {
		return conn
	}
	return r.pool
}

const assignmentCols = `id, agency_id, caregiver_id, elder_ids, active, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, a *CaregiverAssignment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO caregiver_assignments (id, agency_id, caregiver_id, elder_ids, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.AgencyID, a.CaregiverID, a.ElderIDs, a.Active, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*CaregiverAssignment, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+assignmentCols+` FROM caregiver_assignments WHERE id = $1`, id)
	return scanAssignment(row)
}

func (r *repoPG) GetActiveByCaregiver(ctx context.Context, agencyID, caregiverID uuid.UUID) (*CaregiverAssignment, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+assignmentCols+` FROM caregiver_assignments
		 WHERE agency_id = $1 AND caregiver_id = $2 AND active`, agencyID, caregiverID)
	return scanAssignment(row)
}

func (r *repoPG) Update(ctx context.Context, a *CaregiverAssignment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE caregiver_assignments SET elder_ids = $2, active = $3, updated_at = $4
		WHERE id = $1`,
		a.ID, a.ElderIDs, a.Active, a.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("assignment not found: %s", a.ID)
	}
	return nil
}

func (r *repoPG) ListActiveByAgency(ctx context.Context, agencyID uuid.UUID) ([]*CaregiverAssignment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+assignmentCols+` FROM caregiver_assignments
		 WHERE agency_id = $1 AND active ORDER BY created_at`, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*CaregiverAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func scanAssignment(row pgx.Row) (*CaregiverAssignment, error) {
	var a CaregiverAssignment
	err := row.Scan(&a.ID, &a.AgencyID, &a.CaregiverID, &a.ElderIDs, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
