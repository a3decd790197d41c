package shift

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const shiftCols = `id, agency_id, elder_id, caregiver_id, date, start_time, end_time,
	duration_minutes, status, assignment_mode, cascade_state, notes, created_by,
	clock_in_at, clock_out_at, created_at, updated_at`

func (r *repoPG) scanShift(row pgx.Row) (*Shift, error) {
	var s Shift
	var cascade []byte
	err := row.Scan(&s.ID, &s.AgencyID, &s.ElderID, &s.CaregiverID, &s.Date,
		&s.StartTime, &s.EndTime, &s.DurationMinutes, &s.Status, &s.AssignmentMode,
		&cascade, &s.Notes, &s.CreatedBy, &s.ClockInAt, &s.ClockOutAt,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(cascade) > 0 {
		s.Cascade = &CascadeState{}
		if err := json.Unmarshal(cascade, s.Cascade); err != nil {
			return nil, fmt.Errorf("decode cascade state: %w", err)
		}
	}
	return &s, nil
}

func encodeCascade(cs *CascadeState) ([]byte, error) {
	if cs == nil {
		return nil, nil
	}
	return json.Marshal(cs)
}

// offerExpiry denormalizes the pending offer deadline out of the cascade
// state so the sweep can use a plain timestamptz index. Nil whenever no
// offer is outstanding.
func offerExpiry(s *Shift) *time.Time {
	if s.Status != StatusOffered || s.Cascade == nil {
		return nil
	}
	return s.Cascade.CurrentOfferExpiresAt
}

func (r *repoPG) Create(ctx context.Context, s *Shift) error {
	s.ID = uuid.New()
	cascade, err := encodeCascade(s.Cascade)
	if err != nil {
		return fmt.Errorf("encode cascade state: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO scheduled_shifts (id, agency_id, elder_id, caregiver_id, date,
			start_time, end_time, duration_minutes, status, assignment_mode,
			cascade_state, offer_expires_at, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		s.ID, s.AgencyID, s.ElderID, s.CaregiverID, s.Date,
		s.StartTime, s.EndTime, s.DurationMinutes, s.Status, s.AssignmentMode,
		cascade, offerExpiry(s), s.Notes, s.CreatedBy)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Shift, error) {
	return r.scanShift(r.conn(ctx).QueryRow(ctx,
		`SELECT `+shiftCols+` FROM scheduled_shifts WHERE id = $1`, id))
}

func (r *repoPG) ListByCaregiverOnDate(ctx context.Context, caregiverID uuid.UUID, date time.Time, statuses []Status) ([]*Shift, error) {
	query := `SELECT ` + shiftCols + ` FROM scheduled_shifts WHERE caregiver_id = $1 AND date = $2`
	args := []interface{}{caregiverID, date}
	if len(statuses) > 0 {
		query += ` AND status = ANY($3)`
		ss := make([]string, len(statuses))
		for i, st := range statuses {
			ss[i] = string(st)
		}
		args = append(args, ss)
	}
	query += ` ORDER BY start_time`
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectShifts(rows, r.scanShift)
}

func (r *repoPG) CountCompletedForElder(ctx context.Context, agencyID, caregiverID, elderID uuid.UUID) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM scheduled_shifts
		WHERE agency_id = $1 AND caregiver_id = $2 AND elder_id = $3 AND status = 'completed'`,
		agencyID, caregiverID, elderID).Scan(&count)
	return count, err
}

func (r *repoPG) CountActiveInWeek(ctx context.Context, agencyID, caregiverID uuid.UUID, weekStart, weekEnd time.Time) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM scheduled_shifts
		WHERE agency_id = $1 AND caregiver_id = $2 AND date BETWEEN $3 AND $4
		  AND status = ANY($5)`,
		agencyID, caregiverID, weekStart, weekEnd,
		[]string{"scheduled", "confirmed", "in_progress", "offered"}).Scan(&count)
	return count, err
}

func (r *repoPG) ListByAgency(ctx context.Context, agencyID uuid.UUID, elderID *uuid.UUID, status Status, limit, offset int) ([]*Shift, int, error) {
	query := `SELECT ` + shiftCols + ` FROM scheduled_shifts WHERE agency_id = $1`
	countQuery := `SELECT COUNT(*) FROM scheduled_shifts WHERE agency_id = $1`
	args := []interface{}{agencyID}
	idx := 2

	if elderID != nil {
		cond := fmt.Sprintf(` AND elder_id = $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, *elderID)
		idx++
	}
	if status != "" {
		cond := fmt.Sprintf(` AND status = $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY date DESC, start_time LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectShifts(rows, r.scanShift)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]*Shift, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+shiftCols+` FROM scheduled_shifts
		WHERE status = 'offered' AND offer_expires_at < $1
		ORDER BY updated_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectShifts(rows, r.scanShift)
}

func (r *repoPG) Update(ctx context.Context, s *Shift) error {
	cascade, err := encodeCascade(s.Cascade)
	if err != nil {
		return fmt.Errorf("encode cascade state: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE scheduled_shifts SET caregiver_id=$2, status=$3, cascade_state=$4,
			offer_expires_at=$5, notes=$6, clock_in_at=$7, clock_out_at=$8, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.CaregiverID, s.Status, cascade, offerExpiry(s), s.Notes, s.ClockInAt, s.ClockOutAt)
	return err
}

func (r *repoPG) CompareAndSwapCascade(ctx context.Context, s *Shift, expectedOfferIndex int) (bool, error) {
	cascade, err := encodeCascade(s.Cascade)
	if err != nil {
		return false, fmt.Errorf("encode cascade state: %w", err)
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE scheduled_shifts SET caregiver_id=$2, status=$3, cascade_state=$4,
			offer_expires_at=$5, updated_at=NOW()
		WHERE id = $1 AND status = 'offered'
		  AND (cascade_state->>'currentOfferIndex')::int = $6`,
		s.ID, s.CaregiverID, s.Status, cascade, offerExpiry(s), expectedOfferIndex)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func collectShifts(rows pgx.Rows, scan func(pgx.Row) (*Shift, error)) ([]*Shift, error) {
	var items []*Shift
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
