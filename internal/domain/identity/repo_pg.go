package identity

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

type userRepoPG struct {
	pool *pgxpool.Pool
}

// NewUserRepoPG creates a Postgres-backed user repository.
func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if conn := db.ConnFromContext(ctx); conn != nil {
		return conn
	}
	return r.pool
}

const userCols = `id, agency_id, email, first_name, last_name, phone, roles, active, created_at, updated_at, deleted_at`

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO users (id, agency_id, email, first_name, last_name, phone, roles, active, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10)`,
		u.ID, u.AgencyID, u.Email, u.FirstName, u.LastName, u.Phone, u.Roles, u.Active, u.CreatedAt, u.UpdatedAt)
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanUser(row)
}

func (r *userRepoPG) GetByEmail(ctx context.Context, agencyID uuid.UUID, email string) (*User, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE agency_id = $1 AND email = $2 AND deleted_at IS NULL`,
		agencyID, email)
	return scanUser(row)
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET first_name = NULLIF($2, ''), last_name = NULLIF($3, ''),
			phone = NULLIF($4, ''), roles = $5, active = $6, updated_at = $7, deleted_at = $8
		WHERE id = $1`,
		u.ID, u.FirstName, u.LastName, u.Phone, u.Roles, u.Active, u.UpdatedAt, u.DeletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", u.ID)
	}
	return nil
}

func (r *userRepoPG) ListByAgency(ctx context.Context, agencyID uuid.UUID, role string, limit, offset int) ([]*User, int, error) {
	where := `agency_id = $1 AND deleted_at IS NULL`
	args := []interface{}{agencyID}
	if role != "" {
		where += ` AND $2 = ANY(roles)`
		args = append(args, role)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userCols, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u                          User
		firstName, lastName, phone *string
	)
	err := row.Scan(&u.ID, &u.AgencyID, &u.Email, &firstName, &lastName, &phone,
		&u.Roles, &u.Active, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if err != nil {
		return nil, err
	}
	if firstName != nil {
		u.FirstName = *firstName
	}
	if lastName != nil {
		u.LastName = *lastName
	}
	if phone != nil {
		u.Phone = *phone
	}
	return &u, nil
}

type elderRepoPG struct {
	pool *pgxpool.Pool
}

// NewElderRepoPG creates a Postgres-backed elder repository.
func NewElderRepoPG(pool *pgxpool.Pool) ElderRepository {
	return &elderRepoPG{pool: pool}
}

func (r *elderRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if conn := db.ConnFromContext(ctx); conn != nil {
		return conn
	}
	return r.pool
}

const elderCols = `id, agency_id, first_name, last_name, date_of_birth, address, care_notes, primary_caregiver_id, active, created_at, updated_at`

func (r *elderRepoPG) Create(ctx context.Context, e *Elder) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO elders (id, agency_id, first_name, last_name, date_of_birth, address, care_notes, primary_caregiver_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11)`,
		e.ID, e.AgencyID, e.FirstName, e.LastName, e.DateOfBirth, e.Address, e.CareNotes,
		e.PrimaryCaregiverID, e.Active, e.CreatedAt, e.UpdatedAt)
	return err
}

func (r *elderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Elder, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+elderCols+` FROM elders WHERE id = $1`, id)
	return scanElder(row)
}

func (r *elderRepoPG) Update(ctx context.Context, e *Elder) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE elders SET first_name = $2, last_name = NULLIF($3, ''), date_of_birth = $4,
			address = NULLIF($5, ''), care_notes = NULLIF($6, ''), primary_caregiver_id = $7,
			active = $8, updated_at = $9
		WHERE id = $1`,
		e.ID, e.FirstName, e.LastName, e.DateOfBirth, e.Address, e.CareNotes,
		e.PrimaryCaregiverID, e.Active, e.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("elder not found: %s", e.ID)
	}
	return nil
}

func (r *elderRepoPG) ListByAgency(ctx context.Context, agencyID uuid.UUID, activeOnly bool, limit, offset int) ([]*Elder, int, error) {
	where := `agency_id = $1`
	if activeOnly {
		where += ` AND active`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM elders WHERE `+where, agencyID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+elderCols+` FROM elders WHERE `+where+` ORDER BY first_name, last_name LIMIT $2 OFFSET $3`,
		agencyID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Elder
	for rows.Next() {
		e, err := scanElder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func scanElder(row pgx.Row) (*Elder, error) {
	var (
		e                             Elder
		lastName, address, careNotes *string
	)
	err := row.Scan(&e.ID, &e.AgencyID, &e.FirstName, &lastName, &e.DateOfBirth,
		&address, &careNotes, &e.PrimaryCaregiverID, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastName != nil {
		e.LastName = *lastName
	}
	if address != nil {
		e.Address = *address
	}
	if careNotes != nil {
		e.CareNotes = *careNotes
	}
	return &e, nil
}
