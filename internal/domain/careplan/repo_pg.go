package careplan

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

// =========== ScheduledItem Repository ===========

type itemRepoPG struct{ pool *pgxpool.Pool }

func NewItemRepoPG(pool *pgxpool.Pool) ItemRepository { return &itemRepoPG{pool: pool} }

func (r *itemRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const itemCols = `id, elder_id, item_type, name, dosage, frequency, active, created_at, updated_at`

func (r *itemRepoPG) scanItem(row pgx.Row) (*ScheduledItem, error) {
	var item ScheduledItem
	var freq []byte
	err := row.Scan(&item.ID, &item.ElderID, &item.Type, &item.Name, &item.Dosage,
		&freq, &item.Active, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(freq, &item.Frequency); err != nil {
		return nil, fmt.Errorf("decode frequency: %w", err)
	}
	return &item, nil
}

func (r *itemRepoPG) Create(ctx context.Context, item *ScheduledItem) error {
	item.ID = uuid.New()
	freq, err := json.Marshal(item.Frequency)
	if err != nil {
		return fmt.Errorf("encode frequency: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO scheduled_items (id, elder_id, item_type, name, dosage, frequency, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		item.ID, item.ElderID, item.Type, item.Name, item.Dosage, freq, item.Active)
	return err
}

func (r *itemRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ScheduledItem, error) {
	return r.scanItem(r.conn(ctx).QueryRow(ctx, `SELECT `+itemCols+` FROM scheduled_items WHERE id = $1`, id))
}

func (r *itemRepoPG) Update(ctx context.Context, item *ScheduledItem) error {
	freq, err := json.Marshal(item.Frequency)
	if err != nil {
		return fmt.Errorf("encode frequency: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE scheduled_items SET name=$2, dosage=$3, frequency=$4, active=$5, updated_at=NOW()
		WHERE id = $1`,
		item.ID, item.Name, item.Dosage, freq, item.Active)
	return err
}

func (r *itemRepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE scheduled_items SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *itemRepoPG) ListActiveByElder(ctx context.Context, elderID uuid.UUID, itemType ItemType) ([]*ScheduledItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+itemCols+` FROM scheduled_items
		WHERE elder_id = $1 AND item_type = $2 AND active = TRUE
		ORDER BY created_at`, elderID, itemType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ScheduledItem
	for rows.Next() {
		item, err := r.scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// =========== DoseLog Repository ===========

type logRepoPG struct{ pool *pgxpool.Pool }

func NewLogRepoPG(pool *pgxpool.Pool) LogRepository { return &logRepoPG{pool: pool} }

func (r *logRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const logCols = `id, item_id, item_type, elder_id, status, scheduled_time, note, recorded_by, created_at`

func (r *logRepoPG) Create(ctx context.Context, l *DoseLog) error {
	l.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dose_logs (id, item_id, item_type, elder_id, status, scheduled_time, note, recorded_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		l.ID, l.ItemID, l.ItemType, l.ElderID, l.Status, l.ScheduledTime, l.Note, l.RecordedBy, l.CreatedAt)
	return err
}

func (r *logRepoPG) ListByElderBetween(ctx context.Context, elderID uuid.UUID, itemType ItemType, from, to time.Time) ([]DoseLog, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+logCols+` FROM dose_logs
		WHERE elder_id = $1 AND item_type = $2
		  AND COALESCE(scheduled_time, created_at) BETWEEN $3 AND $4
		ORDER BY created_at`, elderID, itemType, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []DoseLog
	for rows.Next() {
		var l DoseLog
		if err := rows.Scan(&l.ID, &l.ItemID, &l.ItemType, &l.ElderID, &l.Status,
			&l.ScheduledTime, &l.Note, &l.RecordedBy, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
